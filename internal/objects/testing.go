package objects

// TestParseID parses s and panics if s is not a valid ID, for use in test
// table literals where returning an error is inconvenient.
func TestParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}
