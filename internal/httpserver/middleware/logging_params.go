/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"time"

	"github.com/ssgreg/logf"

	"github.com/Muminur/shopgenfy-sub002/internal/log"
)

type loggableIntMap map[string]int64

func (lm loggableIntMap) EncodeLogfObject(e logf.FieldEncoder) error {
	for key, value := range lm {
		e.EncodeFieldInt64(key, value)
	}
	return nil
}

// LoggingParams collects extra data for the final access-log line. Handlers
// and the outbound clients add fields and time slots to it through the
// request context while the request is being served.
type LoggingParams struct {
	fields    []log.Field
	timeSlots loggableIntMap
}

// ExtendFields adds fields to be logged with the final access-log line.
func (lp *LoggingParams) ExtendFields(fields ...log.Field) {
	lp.fields = append(lp.fields, fields...)
}

// AddTimeSlotInt adds a value to the named slot of the "time_slots" field group.
func (lp *LoggingParams) AddTimeSlotInt(name string, dur int64) {
	if lp.timeSlots == nil {
		lp.timeSlots = make(loggableIntMap, 1)
	}
	lp.timeSlots[name] += dur
}

// AddTimeSlotDurationInMs adds a duration in milliseconds to the named slot
// of the "time_slots" field group.
func (lp *LoggingParams) AddTimeSlotDurationInMs(name string, dur time.Duration) {
	lp.AddTimeSlotInt(name, dur.Milliseconds())
}
