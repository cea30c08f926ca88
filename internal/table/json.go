package table

import "encoding/json"

// MarshalJSON serializes the table as its column list, for session
// snapshots. Not a public interchange format.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.cols)
}

// UnmarshalJSON restores a table from its column list.
func (t *Table) UnmarshalJSON(b []byte) error {
	var cols []Column
	if err := json.Unmarshal(b, &cols); err != nil {
		return err
	}
	restored, err := New(cols)
	if err != nil {
		return err
	}
	*t = *restored
	return nil
}
