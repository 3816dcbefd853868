package filesystem

import (
	"encoding/json"
	"fmt"

	"deepresearch/internal/core/domain/events"
	"deepresearch/internal/core/ports"
)

// decodeEvent unmarshals data into a concrete event type E and returns it as
// a ports.Event. E must be one of the event structs embedding
// events.BaseEvent, whose promoted accessor methods satisfy the interface.
func decodeEvent[E any](data []byte) (ports.Event, error) {
	var e E
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	event, ok := any(&e).(ports.Event)
	if !ok {
		return nil, fmt.Errorf("type %T does not implement ports.Event", e)
	}
	return event, nil
}

var eventDecoders = map[string]func([]byte) (ports.Event, error){
	events.TypeResearchStarted:   decodeEvent[events.ResearchStartedEvent],
	events.TypePlanCreated:       decodeEvent[events.PlanCreatedEvent],
	events.TypeWorkerStarted:     decodeEvent[events.WorkerStartedEvent],
	events.TypeWorkerCompleted:   decodeEvent[events.WorkerCompletedEvent],
	events.TypeWorkerFailed:      decodeEvent[events.WorkerFailedEvent],
	events.TypeAnalysisStarted:   decodeEvent[events.AnalysisStartedEvent],
	events.TypeAnalysisCompleted: decodeEvent[events.AnalysisCompletedEvent],
	events.TypeSynthesisStarted:  decodeEvent[events.SynthesisStartedEvent],
	events.TypeReportGenerated:   decodeEvent[events.ReportGeneratedEvent],
	events.TypeResearchCompleted: decodeEvent[events.ResearchCompletedEvent],
	events.TypeResearchFailed:    decodeEvent[events.ResearchFailedEvent],
	events.TypeResearchCancelled: decodeEvent[events.ResearchCancelledEvent],
	events.TypeSnapshotTaken:     decodeEvent[events.SnapshotTakenEvent],
}

// deserializeEvent decodes a JSON-encoded record into its concrete event
// type, dispatching on the BaseEvent.Type discriminator carried in the JSON.
func deserializeEvent(data []byte) (ports.Event, error) {
	var base events.BaseEvent
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, err
	}

	decode, ok := eventDecoders[base.Type]
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", base.Type)
	}
	return decode(data)
}
