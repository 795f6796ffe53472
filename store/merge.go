package store

// laneStatus is the outcome a transition writes into a lane.
type laneStatus int

const (
	laneBusy laneStatus = iota
	laneDone
	laneFailed
)

// laneUpdate is one lane transition.
type laneUpdate struct {
	op      Op
	status  laneStatus
	message string
}

// dataMode selects how a record update treats Data.
type dataMode int

const (
	keepData dataMode = iota
	replaceData
	mergeData
)

// recordUpdate is a lane transition plus an optional Data change.
type recordUpdate struct {
	laneUpdate
	data Data
	mode dataMode
}

// applyLane writes a lane transition into flags and errors:
//
//   - the lane flag becomes true for laneBusy, false otherwise
//   - the last error and the lane's error slot are cleared, or set to the
//     message for laneFailed
//   - other lanes' flags and error slots are left untouched
func applyLane(states *States, last *ErrorInfo, errs *Errors, u laneUpdate) {
	states.set(u.op, u.status == laneBusy)
	info := ErrorInfo{}
	if u.status == laneFailed {
		info.Message = u.message
	}
	*last = info
	errs.set(u.op, info)
}

// mergeRecordState returns rec with u applied. States, Error and Errors follow
// applyLane. Data is kept as is, replaced by a copy of u.data, or shallow-merged
// with u.data (new fields win) depending on u.mode. rec is not modified.
func mergeRecordState(rec RecordState, u recordUpdate) RecordState {
	next := rec
	applyLane(&next.States, &next.Error, &next.Errors, u.laneUpdate)

	switch u.mode {
	case replaceData:
		next.Data = mergeDataMaps(nil, u.data)
	case mergeData:
		next.Data = mergeDataMaps(rec.Data, u.data)
	default:
		if next.Data == nil {
			next.Data = Data{}
		}
	}
	return next
}

// mergeAggregateState returns state with u applied to the resource-wide flags
// and errors (see applyLane). Records is replaced by records when non-nil and
// kept otherwise. state is not modified.
func mergeAggregateState(state AggregateState, u laneUpdate, records map[string]RecordState) AggregateState {
	next := state
	applyLane(&next.States, &next.Error, &next.Errors, u)
	if records != nil {
		next.Records = records
	}
	if next.Records == nil {
		next.Records = map[string]RecordState{}
	}
	return next
}

// mergeDataMaps returns a fresh map holding base overlaid with overlay.
func mergeDataMaps(base, overlay Data) Data {
	result := make(Data, len(base)+len(overlay))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range overlay {
		result[k] = v
	}
	return result
}

// copyRecords returns a shallow copy of records.
func copyRecords(records map[string]RecordState) map[string]RecordState {
	result := make(map[string]RecordState, len(records)+1)
	for k, v := range records {
		result[k] = v
	}
	return result
}

// recordOrDefault returns the record with the given identity, or a fresh default.
func recordOrDefault(records map[string]RecordState, identity string) RecordState {
	if rec, ok := records[identity]; ok {
		return rec
	}
	return NewRecordState()
}

// withRecord returns a copy of records with identity set to rec.
func withRecord(records map[string]RecordState, identity string, rec RecordState) map[string]RecordState {
	result := copyRecords(records)
	result[identity] = rec
	return result
}

// withoutRecord returns records without identity. Absent identities return
// records itself.
func withoutRecord(records map[string]RecordState, identity string) map[string]RecordState {
	if _, ok := records[identity]; !ok {
		return records
	}
	result := copyRecords(records)
	delete(result, identity)
	return result
}
