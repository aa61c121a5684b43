package searchdb

// PageIndex is the read/write surface of the search mirror.
// Consumers should depend on this interface rather than the concrete *DB type.
type PageIndex interface {
	UpsertPage(r PageRow) error
	DeletePage(id string) error
	GetPage(id string) (*PageRow, error)
	ListPages(limit, offset int, tag string) ([]PageRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Count() (int, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

var _ PageIndex = (*DB)(nil)
