// Package snapshot persists the catalog to its on-disk JSON layout: the bang
// file (!.json) with every entry, per-letter buckets (_.json, a.json..z.json),
// and the metadata file ($.json). All writes are atomic.
package snapshot

import (
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/gamedex/catalog/errs"
	"github.com/gamedex/catalog/internal/normalize"
	"github.com/gamedex/catalog/internal/schema"
)

const (
	// BangFile holds the full ordered catalog as [name, props] pairs.
	BangFile = "!.json"
	// MetaFile holds the snapshot metadata.
	MetaFile = "$.json"
	// OtherFile buckets names that do not start with a letter.
	OtherFile = "_.json"
)

// props is the per-entry property object shared by the bang file and the
// per-letter files.
type props struct {
	Type      schema.RecordType `json:"type"`
	Price     string            `json:"price"`
	Image     string            `json:"image,omitempty"`
	Href      string            `json:"href"`
	UUID      string            `json:"uuid"`
	Platforms []string          `json:"platforms"`
	Rating    schema.Rating     `json:"rating"`
}

func propsOf(entry schema.CatalogEntry) props {
	return props{
		Type:      entry.Type,
		Price:     entry.Price.Display,
		Image:     entry.Image,
		Href:      entry.PrimaryLink().Href,
		UUID:      entry.PrimaryUUID(),
		Platforms: entry.Platforms,
		Rating:    entry.Rating,
	}
}

// bangPair serializes as the 2-element array [name, props].
type bangPair struct {
	Name  string
	Props props
}

func (p bangPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Name, p.Props})
}

func (p *bangPair) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &p.Name); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Props)
}

// letterEntry is the flat object stored in per-letter files.
type letterEntry struct {
	Name string `json:"name"`
	props
}

// Writer persists snapshots into a single output directory.
type Writer struct {
	dir string
}

// NewWriter constructs a writer targeting dir. The directory is created on
// the first write.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Write serializes the snapshot and renames every file into place. All
// payloads are serialized and staged as temporary files before the first
// rename, so a failure partway leaves the previous snapshot intact. The
// returned metadata carries the total serialized size of the catalog files.
func (w *Writer) Write(snap schema.Snapshot) (schema.SnapshotMeta, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return schema.SnapshotMeta{}, errs.New("", errs.CodeUnavailable,
			errs.WithMessage("create output directory"), errs.WithCause(err))
	}

	files := make(map[string][]byte, 29)

	pairs := make([]bangPair, 0, len(snap.Entries))
	for _, entry := range snap.Entries {
		pairs = append(pairs, bangPair{Name: entry.Name, Props: propsOf(entry)})
	}
	bang, err := json.Marshal(pairs)
	if err != nil {
		return schema.SnapshotMeta{}, errs.New("", errs.CodeSerialization,
			errs.WithMessage("encode bang file"), errs.WithCause(err))
	}
	files[BangFile] = bang

	// every letter file is rewritten each run so buckets emptied since the
	// previous snapshot do not keep stale entries
	buckets := make(map[string][]letterEntry, 27)
	for _, entry := range snap.Entries {
		bucket := normalize.LetterBucket(entry.Name)
		buckets[bucket] = append(buckets[bucket], letterEntry{Name: entry.Name, props: propsOf(entry)})
	}
	for _, bucket := range letterBuckets() {
		entries := buckets[bucket]
		if entries == nil {
			entries = []letterEntry{}
		}
		payload, err := json.Marshal(entries)
		if err != nil {
			return schema.SnapshotMeta{}, errs.New("", errs.CodeSerialization,
				errs.WithMessage("encode letter file"), errs.WithField("bucket", bucket), errs.WithCause(err))
		}
		files[bucket+".json"] = payload
	}

	meta := snap.Meta
	for _, payload := range files {
		meta.Size += int64(len(payload))
	}
	metaPayload, err := json.Marshal(meta)
	if err != nil {
		return schema.SnapshotMeta{}, errs.New("", errs.CodeSerialization,
			errs.WithMessage("encode metadata file"), errs.WithCause(err))
	}
	files[MetaFile] = metaPayload

	staged := make(map[string]string, len(files))
	defer func() {
		for _, tmp := range staged {
			os.Remove(tmp)
		}
	}()
	for name, payload := range files {
		tmp, err := w.stage(name, payload)
		if err != nil {
			return schema.SnapshotMeta{}, err
		}
		staged[name] = tmp
	}
	for name, tmp := range staged {
		if err := os.Rename(tmp, filepath.Join(w.dir, name)); err != nil {
			return schema.SnapshotMeta{}, errs.New("", errs.CodeUnavailable,
				errs.WithMessage("rename snapshot file"), errs.WithField("file", name), errs.WithCause(err))
		}
		delete(staged, name)
	}
	return meta, nil
}

func (w *Writer) stage(name string, payload []byte) (string, error) {
	tmp, err := os.CreateTemp(w.dir, ".snapshot-*")
	if err != nil {
		return "", errs.New("", errs.CodeUnavailable,
			errs.WithMessage("stage snapshot file"), errs.WithField("file", name), errs.WithCause(err))
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", errs.New("", errs.CodeUnavailable,
			errs.WithMessage("write snapshot file"), errs.WithField("file", name), errs.WithCause(err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", errs.New("", errs.CodeUnavailable,
			errs.WithMessage("close snapshot file"), errs.WithField("file", name), errs.WithCause(err))
	}
	return tmp.Name(), nil
}

func letterBuckets() []string {
	buckets := make([]string, 0, 27)
	buckets = append(buckets, "_")
	for c := 'a'; c <= 'z'; c++ {
		buckets = append(buckets, string(c))
	}
	return buckets
}

// Read loads the previous snapshot from dir. A missing bang file means no
// prior snapshot exists and returns an empty snapshot without error. Fields
// the on-disk layout does not carry (per-store links, provenance, minor
// price units) come back empty.
func Read(dir string) (schema.Snapshot, error) {
	bang, err := os.ReadFile(filepath.Join(dir, BangFile))
	if os.IsNotExist(err) {
		return schema.Snapshot{}, nil
	}
	if err != nil {
		return schema.Snapshot{}, errs.New("", errs.CodeUnavailable,
			errs.WithMessage("read bang file"), errs.WithCause(err))
	}
	var pairs []bangPair
	if err := json.Unmarshal(bang, &pairs); err != nil {
		return schema.Snapshot{}, errs.New("", errs.CodeSerialization,
			errs.WithMessage("decode bang file"), errs.WithCause(err))
	}

	snap := schema.Snapshot{Entries: make([]schema.CatalogEntry, 0, len(pairs))}
	for _, pair := range pairs {
		snap.Entries = append(snap.Entries, schema.CatalogEntry{
			Name:      pair.Name,
			Type:      pair.Props.Type,
			Price:     schema.Price{Display: pair.Props.Price},
			Image:     pair.Props.Image,
			Platforms: pair.Props.Platforms,
			Rating:    pair.Props.Rating,
		})
	}

	metaPayload, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err == nil {
		if err := json.Unmarshal(metaPayload, &snap.Meta); err != nil {
			return schema.Snapshot{}, errs.New("", errs.CodeSerialization,
				errs.WithMessage("decode metadata file"), errs.WithCause(err))
		}
	} else if !os.IsNotExist(err) {
		return schema.Snapshot{}, errs.New("", errs.CodeUnavailable,
			errs.WithMessage("read metadata file"), errs.WithCause(err))
	}
	return snap, nil
}
