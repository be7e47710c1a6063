package planner

import (
	"context"
	"errors"
	"math/big"
	"sync"
)

// ── Fake Catalog ──

type fakeCatalog struct {
	infos   map[string]ModuleInfo
	offered map[string]map[string][]int // code → ay → sem_nums
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		infos:   make(map[string]ModuleInfo),
		offered: make(map[string]map[string][]int),
	}
}

func (f *fakeCatalog) add(code string, credits int64, yearLong bool) *fakeCatalog {
	f.infos[code] = ModuleInfo{Code: code, Title: code + " Title", Credits: big.NewRat(credits, 1), YearLong: yearLong}
	return f
}

func (f *fakeCatalog) offer(code, ay string, sems ...int) *fakeCatalog {
	if f.offered[code] == nil {
		f.offered[code] = make(map[string][]int)
	}
	f.offered[code][ay] = sems
	return f
}

func (f *fakeCatalog) ModuleInfo(_ context.Context, code string) (ModuleInfo, error) {
	info, ok := f.infos[code]
	if !ok {
		return ModuleInfo{}, ErrUnknownModule
	}
	return info, nil
}

func (f *fakeCatalog) TermsOffered(_ context.Context, code, ay string) ([]int, error) {
	return f.offered[code][ay], nil
}

// ── Fake PrereqSource ──

type fakePrereqs struct {
	mu    sync.Mutex
	trees map[string]*PrereqTree
	calls map[string]int
	years []string
	err   error
}

func newFakePrereqs() *fakePrereqs {
	return &fakePrereqs{
		trees: make(map[string]*PrereqTree),
		calls: make(map[string]int),
	}
}

func (f *fakePrereqs) PrereqTree(_ context.Context, code, ay string) (*PrereqTree, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[code]++
	f.years = append(f.years, ay)
	if f.err != nil {
		return nil, f.err
	}
	return f.trees[code], nil
}

func (f *fakePrereqs) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

var errUpstream = errors.New("upstream down")

func rat(n int64) *big.Rat { return big.NewRat(n, 1) }
