package model

import (
	"fmt"
	"sort"
)

// Repositories with a pinned manifest.
const (
	DiacriticsRepo = "iliemihai/mt5-base-romanian-diacritics"
	EmbedderRepo   = "dumitrescustefan/bert-base-romanian-uncased-v1"
)

// DefaultRevision is used when a manifest entry does not pin a commit.
const DefaultRevision = "main"

type Manifest struct {
	Repo  string      `json:"repo"`
	Files []ModelFile `json:"files"`
}

// ModelFile is one repository file. An empty SHA256 is resolved on first
// download and persisted into the lock manifest of the output directory.
type ModelFile struct {
	Filename string `json:"filename"`
	Revision string `json:"revision"`
	SHA256   string `json:"sha256"`
	Optional bool   `json:"optional,omitempty"`
}

var pinned = map[string]Manifest{
	DiacriticsRepo: {
		Repo: DiacriticsRepo,
		Files: []ModelFile{
			{Filename: "config.json", Revision: DefaultRevision},
			{Filename: "spiece.model", Revision: DefaultRevision},
			{Filename: "tokenizer.json", Revision: DefaultRevision},
			{Filename: "special_tokens_map.json", Revision: DefaultRevision, Optional: true},
		},
	},
	EmbedderRepo: {
		Repo: EmbedderRepo,
		Files: []ModelFile{
			{Filename: "config.json", Revision: DefaultRevision},
			{Filename: "vocab.txt", Revision: DefaultRevision},
			{Filename: "tokenizer_config.json", Revision: DefaultRevision, Optional: true},
		},
	},
}

// PinnedManifest returns a copy of the manifest registered for repo.
func PinnedManifest(repo string) (Manifest, error) {
	m, ok := pinned[repo]
	if !ok {
		return Manifest{}, fmt.Errorf("no pinned manifest for repo %q (known: %v)", repo, KnownRepos())
	}

	m.Files = append([]ModelFile(nil), m.Files...)

	return m, nil
}

// KnownRepos lists repositories with a pinned manifest.
func KnownRepos() []string {
	out := make([]string, 0, len(pinned))
	for repo := range pinned {
		out = append(out, repo)
	}
	sort.Strings(out)

	return out
}
