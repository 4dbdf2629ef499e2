package records

// Registry holds the records produced during one run, in deployment order.
// It is not safe for concurrent use.
type Registry struct {
	order   []string
	records map[string]Record
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[string]Record)}
}

// Save stores r, replacing an earlier record of the same contract.
func (r *Registry) Save(record Record) {
	if _, exists := r.records[record.ContractName]; !exists {
		r.order = append(r.order, record.ContractName)
	}
	r.records[record.ContractName] = record
}

func (r *Registry) Get(contractName string) (Record, bool) {
	record, ok := r.records[contractName]
	return record, ok
}

// All returns the records in the order they were first saved.
func (r *Registry) All() []Record {
	all := make([]Record, 0, len(r.order))
	for _, name := range r.order {
		all = append(all, r.records[name])
	}
	return all
}

func (r *Registry) Len() int {
	return len(r.order)
}
