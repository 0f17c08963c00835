package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type exampleCountingSink struct {
	records int64
}

func (s *exampleCountingSink) Consume(_ context.Context, batch []Event) error {
	for _, evt := range batch {
		if evt.Stage == StageCrawlDone {
			s.records += evt.Records
		}
	}
	return nil
}

func (s *exampleCountingSink) Close(context.Context) error {
	return nil
}

// ExampleDispatcher_Emit demonstrates forwarding a crawl completion to a sink.
func ExampleDispatcher_Emit() {
	sink := &exampleCountingSink{}
	d := NewDispatcher(Config{}, sink)

	d.Emit(Event{
		RunID:   UUIDToBytes(uuid.MustParse("00000000-0000-0000-0000-000000000001")),
		TS:      time.Unix(0, 0),
		Stage:   StageCrawlDone,
		Crawl:   "CC-MAIN-2023-50",
		Records: 42,
	})
	if err := d.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("records reported: %d\n", sink.records)
	// Output:
	// records reported: 42
}
