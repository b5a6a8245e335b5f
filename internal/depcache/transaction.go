package depcache

// staged is the table-side hook a transaction drives. Both table variants
// implement it.
type staged[K comparable] interface {
	drainReaders(keys []K) map[K]struct{}
}

// Transaction stages key sets across one or more tables and converts their
// pre-write read history into a single consumer set. It is the sole
// invalidation mechanism: writes are opaque, staleness comes from who read
// what before the update ran.
type Transaction[K comparable] struct {
	stages []stageEntry[K]
}

type stageEntry[K comparable] struct {
	table staged[K]
	keys  []K
}

// NewTransaction creates an empty transaction; tables chain onto it via
// their AddToTransaction methods.
func NewTransaction[K comparable]() *Transaction[K] {
	return &Transaction[K]{}
}

func (tx *Transaction[K]) stage(t staged[K], keys []K) {
	tx.stages = append(tx.stages, stageEntry[K]{table: t, keys: keys})
}

// Execute drains the read history of every staged key (beginning a fresh
// generation), runs update, and returns the union of pre-write consumers.
// The consumer set is valid even when update fails; reads performed inside
// update register in the new generation and survive.
//
// Transactions are not nested or interleaved: between staging and Execute
// no other write to a staged key may occur.
func (tx *Transaction[K]) Execute(update func() error) (map[K]struct{}, error) {
	invalidated := make(map[K]struct{})
	for _, s := range tx.stages {
		for c := range s.table.drainReaders(s.keys) {
			invalidated[c] = struct{}{}
		}
	}
	err := update()
	return invalidated, err
}
