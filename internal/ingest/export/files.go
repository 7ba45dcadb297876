package export

import (
	"github.com/khoahotran/linkgraph/pkg/apperror"
)

const (
	FileProfile     = "Profile.csv"
	FileConnections = "Connections.csv"
	FilePositions   = "Positions.csv"
	FileEducation   = "Education.csv"
	FileSkills      = "Skills.csv"
)

// RecognizedFiles are the export members the normalizer reads. Names are case sensitive.
var RecognizedFiles = []string{FileProfile, FileConnections, FilePositions, FileEducation, FileSkills}

// RequiredFiles must be present in every export.
var RequiredFiles = []string{FileProfile, FileConnections}

// File is one named member of an export.
type File struct {
	Name    string
	Content []byte
}

func IsRecognized(name string) bool {
	for _, n := range RecognizedFiles {
		if n == name {
			return true
		}
	}
	return false
}

// Index keeps the first recognized file for each name.
func Index(files []File) map[string][]byte {
	set := make(map[string][]byte, len(RecognizedFiles))
	for _, f := range files {
		if !IsRecognized(f.Name) {
			continue
		}
		if _, seen := set[f.Name]; !seen {
			set[f.Name] = f.Content
		}
	}
	return set
}

// Validate fails with MissingRequiredFiles when Profile.csv or Connections.csv is absent.
func Validate(files []File) error {
	set := Index(files)
	var missing []string
	for _, name := range RequiredFiles {
		if _, ok := set[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return apperror.NewMissingRequiredFiles(missing)
	}
	return nil
}
