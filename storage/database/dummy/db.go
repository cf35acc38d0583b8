package dummydb

import (
	"sync"

	"github.com/trezcool/masomo-grading/core/scheme"
)

type (
	DB struct {
		draft *draftTable
	}

	draftTable struct {
		sync.RWMutex
		table map[string]*scheme.Draft
	}
)

func Open() (*DB, error) {
	db := &DB{
		draft: &draftTable{table: make(map[string]*scheme.Draft)},
	}
	return db, nil
}
