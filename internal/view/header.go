package view

import "projects-factory/internal/model"

type Column struct {
	Key       model.SortKey
	Label     string
	Active    bool
	Indicator string
}

var columnLabels = map[model.SortKey]string{
	model.SortByName:        "Name",
	model.SortByDescription: "Description",
	model.SortByURL:         "URL",
	model.SortByCreatedAt:   "Created",
	model.SortByKind:        "Kind",
}

// Header returns the sortable columns with the active one marked ▲ (asc) or ▼ (desc).
func Header(v model.ViewState) []Column {
	keys := model.SortKeys()
	out := make([]Column, 0, len(keys))
	for _, k := range keys {
		col := Column{Key: k, Label: columnLabels[k]}
		if k == v.SortKey {
			col.Active = true
			col.Indicator = "▲"
			if v.SortDir == model.Descending {
				col.Indicator = "▼"
			}
		}
		out = append(out, col)
	}
	return out
}

// NextSort is the state after clicking a column header: the active column flips
// direction, any other column becomes active ascending.
func NextSort(v model.ViewState, k model.SortKey) (model.SortKey, model.SortDir) {
	if v.SortKey == k {
		return k, v.SortDir.Flip()
	}
	return k, model.Ascending
}
