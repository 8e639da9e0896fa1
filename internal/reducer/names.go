package reducer

import (
	"slices"

	"github.com/roach88/stockroom/internal/ir"
)

func (st *step) addName(a ir.AddName) {
	names := st.state.Names[a.ID]
	idx, found := slices.BinarySearch(names, a.Name)
	if found {
		return
	}
	st.state.Names[a.ID] = slices.Insert(names, idx, a.Name)
}

func (st *step) removeName(a ir.RemoveName) {
	names := st.state.Names[a.ID]
	idx, found := slices.BinarySearch(names, a.Name)
	if !found {
		return
	}
	names = slices.Delete(names, idx, idx+1)
	if len(names) == 0 {
		delete(st.state.Names, a.ID)
		return
	}
	st.state.Names[a.ID] = names
}
