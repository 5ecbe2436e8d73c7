package location

import "testing"

var passwordTests = []struct {
	input    string
	expected string
}{
	{
		"local:/srv/repo",
		"local:/srv/repo",
	},
	{
		"/dir1/dir2",
		"/dir1/dir2",
	},
	{
		`c:\dir1\foobar\dir2`,
		`c:\dir1\foobar\dir2`,
	},
	{
		"sftp:user@host:/srv/repo",
		"sftp:user@host:/srv/repo",
	},
}

func TestStripPassword(t *testing.T) {
	r := testRegistry()
	for i, test := range passwordTests {
		t.Run(test.input, func(t *testing.T) {
			result := StripPassword(r, test.input)
			if result != test.expected {
				t.Errorf("test %d: expected '%s' but got '%s'", i, test.expected, result)
			}
		})
	}
}
