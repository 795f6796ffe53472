package store

import (
	"sort"

	"github.com/jacentio/recrud/internal/keys"
)

// Data is a record payload as returned by the server. Its shape is defined by
// the resource.
type Data map[string]any

// ErrorInfo is the stored form of any error.
type ErrorInfo struct {
	Message string `json:"message"`
}

// States holds one busy flag per lane.
type States struct {
	IsFetchingList   bool `json:"isFetchingList"`
	IsFetchingSingle bool `json:"isFetchingSingle"`
	IsCreating       bool `json:"isCreating"`
	IsPutting        bool `json:"isPutting"`
	IsUpdating       bool `json:"isUpdating"`
	IsDeleting       bool `json:"isDeleting"`
}

// Get returns the flag of op's lane.
func (s States) Get(op Op) bool {
	switch op {
	case FetchList:
		return s.IsFetchingList
	case FetchSingle:
		return s.IsFetchingSingle
	case Create:
		return s.IsCreating
	case Put:
		return s.IsPutting
	case Patch:
		return s.IsUpdating
	case Delete:
		return s.IsDeleting
	}
	return false
}

// Any reports whether any lane is busy.
func (s States) Any() bool {
	return s.IsFetchingList || s.IsFetchingSingle || s.IsCreating ||
		s.IsPutting || s.IsUpdating || s.IsDeleting
}

func (s *States) set(op Op, v bool) {
	switch op {
	case FetchList:
		s.IsFetchingList = v
	case FetchSingle:
		s.IsFetchingSingle = v
	case Create:
		s.IsCreating = v
	case Put:
		s.IsPutting = v
	case Patch:
		s.IsUpdating = v
	case Delete:
		s.IsDeleting = v
	}
}

// Errors holds the last error of each lane.
type Errors struct {
	FetchList   ErrorInfo `json:"fetchList"`
	FetchSingle ErrorInfo `json:"fetchSingle"`
	Create      ErrorInfo `json:"create"`
	Put         ErrorInfo `json:"put"`
	Update      ErrorInfo `json:"update"`
	Delete      ErrorInfo `json:"delete"`
}

// Get returns the last error of op's lane.
func (e Errors) Get(op Op) ErrorInfo {
	switch op {
	case FetchList:
		return e.FetchList
	case FetchSingle:
		return e.FetchSingle
	case Create:
		return e.Create
	case Put:
		return e.Put
	case Patch:
		return e.Update
	case Delete:
		return e.Delete
	}
	return ErrorInfo{}
}

func (e *Errors) set(op Op, info ErrorInfo) {
	switch op {
	case FetchList:
		e.FetchList = info
	case FetchSingle:
		e.FetchSingle = info
	case Create:
		e.Create = info
	case Put:
		e.Put = info
	case Patch:
		e.Update = info
	case Delete:
		e.Delete = info
	}
}

// RecordState is the state of one record.
type RecordState struct {
	States States    `json:"states"`
	Error  ErrorInfo `json:"error"`
	Errors Errors    `json:"errors"`
	Data   Data      `json:"data"`
}

// NewRecordState returns the state of a record nothing is known about yet.
func NewRecordState() RecordState {
	return RecordState{Data: Data{}}
}

// AggregateState is the state of one resource.
type AggregateState struct {
	States  States                 `json:"states"`
	Error   ErrorInfo              `json:"error"`
	Errors  Errors                 `json:"errors"`
	Records map[string]RecordState `json:"records"`
}

// NewAggregateState returns the initial state of a resource.
func NewAggregateState() AggregateState {
	return AggregateState{Records: map[string]RecordState{}}
}

// Record returns the state of the record with the given identity. Absent
// records report the default state.
func (s AggregateState) Record(identity string) (RecordState, bool) {
	rec, ok := s.Records[identity]
	if !ok {
		return NewRecordState(), false
	}
	return rec, true
}

// Identities returns the record identities in sorted order.
func (s AggregateState) Identities() []string {
	ids := make([]string, 0, len(s.Records))
	for id := range s.Records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RecordsForPartition returns the records whose identity is a composite under
// partitionValue, ordered by identity.
func RecordsForPartition(records map[string]RecordState, partitionValue string) []RecordState {
	ids := make([]string, 0)
	for id := range records {
		if keys.InPartition(id, partitionValue) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	result := make([]RecordState, 0, len(ids))
	for _, id := range ids {
		result = append(result, records[id])
	}
	return result
}

// KeyInput holds everything a record identity can be derived from.
type KeyInput = keys.Input

// ResolveKey computes a record identity. Precedence, highest first: explicit
// KeyValue, Extractor(Data), "{PartitionKeyValue}:{Data[Key]}",
// "{Data[PartitionKey]}:{Data[Key]}", Data[Key]. The boolean is false when
// nothing resolves.
func ResolveKey(in KeyInput) (string, bool) {
	return keys.Resolve(in)
}
