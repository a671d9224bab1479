package index

import (
	"log/slog"
	"time"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/frontmatter"
	"github.com/starford/ansuz/internal/schema"
	"github.com/starford/ansuz/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed records are parsed and upserted
//   - records removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, s *schema.Schema, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexRecord(db, s, m.Path, m.Checksum, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteRecord(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// indexIfChanged upserts a record only when its content checksum differs
// from the one already indexed. Editors fire several write events per save;
// comparing first keeps duplicates from producing index churn and spurious
// change events.
func indexIfChanged(db *DB, s *schema.Schema, path string, data []byte) (bool, error) {
	sum := checksum.Sum(data)
	if prev, _ := db.GetChecksum(path); prev == sum {
		return false, nil
	}
	if err := indexRecord(db, s, path, sum, data); err != nil {
		return false, err
	}
	return true, nil
}

// indexRecord parses record data and upserts it into the DB. Records whose
// frontmatter fails to parse are indexed body-only so search still sees
// them.
func indexRecord(db *DB, s *schema.Schema, path, checksum string, data []byte) error {
	doc, err := frontmatter.Parse(data)
	if err != nil {
		doc = &frontmatter.Doc{Body: string(data)}
	}

	typePath := ""
	title := ""
	if doc.Attrs != nil {
		if tp, tpErr := s.ResolveTypePathFromFrontmatter(doc.Attrs); tpErr == nil {
			typePath = tp
		}
		if t, ok := doc.Attrs["title"].(string); ok {
			title = t
		}
	}

	refs := frontmatter.ExtractLinks(doc.Body)
	for _, value := range doc.Attrs {
		refs = append(refs, frontmatter.LinkTargets(value)...)
	}

	row := RecordRow{
		Path:      path,
		TypePath:  typePath,
		Title:     title,
		Checksum:  checksum,
		Attrs:     doc.Attrs,
		UpdatedAt: time.Now(),
	}
	return db.UpsertRecord(row, doc.Body, dedupe(refs))
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
