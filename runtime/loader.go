package runtime

import (
	"bufio"
	"io/fs"
	"path"
	"slices"
	"stream-lab/errors"
	"strings"

	"github.com/samber/lo"
)

// WordLists is the merged content of the banned-word dictionaries, one file per language.
type WordLists struct {
	Words []string
	// PerLanguage counts the words each file contributed before deduplication.
	PerLanguage map[string]int
}

func (w WordLists) Languages() []string {
	langs := lo.Keys(w.PerLanguage)
	slices.Sort(langs)
	return langs
}

// LoadWordLists reads every dir/*.txt file of fsys. Lines are trimmed and lower-cased,
// blank lines and lines starting with # are skipped.
func LoadWordLists(fsys fs.FS, dir string) (WordLists, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return WordLists{}, err
	}

	res := WordLists{PerLanguage: make(map[string]int)}
	seen := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".txt" {
			continue
		}
		lang := strings.TrimSuffix(entry.Name(), ".txt")

		f, err := fsys.Open(path.Join(dir, entry.Name()))
		if err != nil {
			return WordLists{}, err
		}
		// bufio handles \r\n files exported from Windows editors
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			word := strings.ToLower(strings.TrimSpace(scanner.Text()))
			if word == "" || strings.HasPrefix(word, "#") {
				continue
			}
			res.PerLanguage[lang]++
			if _, dup := seen[word]; dup {
				continue
			}
			seen[word] = struct{}{}
			res.Words = append(res.Words, word)
		}
		_ = f.Close()
		if err := scanner.Err(); err != nil {
			return WordLists{}, err
		}
	}

	if len(res.Words) == 0 {
		return WordLists{}, errors.ErrEmptyWords
	}
	return res, nil
}
