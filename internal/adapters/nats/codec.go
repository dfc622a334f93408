package natsadapter

import (
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/samirrijal/mylocation/internal/core/domain"
)

const (
	fixSubjectPrefix   = "location.fixes."
	frameSubjectPrefix = "location.frames."
)

// FixSubject is the subject fixes of deviceID are published on.
func FixSubject(deviceID string) string {
	return fixSubjectPrefix + subjectToken(deviceID)
}

// FrameSubject is the subject frames of a session are published on.
func FrameSubject(sessionID string) string {
	return frameSubjectPrefix + subjectToken(sessionID)
}

// subjectToken replaces characters NATS treats as separators or wildcards.
func subjectToken(s string) string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
}

// EncodeFix serialises a fix as a protobuf Struct.
func EncodeFix(fix *domain.Fix) ([]byte, error) {
	st, err := structpb.NewStruct(map[string]any{
		"device_id": fix.DeviceID,
		"time":      fix.Time.UTC().Format(time.RFC3339Nano),
		"latitude":  fix.Coordinates.Latitude,
		"longitude": fix.Coordinates.Longitude,
		"accuracy":  fix.Coordinates.Accuracy,
		"source":    fix.Source,
	})
	if err != nil {
		return nil, fmt.Errorf("encode fix: %w", err)
	}
	return proto.Marshal(st)
}

// DecodeFix is the inverse of EncodeFix.
func DecodeFix(data []byte) (*domain.Fix, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode fix: %w", err)
	}

	f := st.GetFields()
	fix := &domain.Fix{
		DeviceID: f["device_id"].GetStringValue(),
		Source:   f["source"].GetStringValue(),
		Coordinates: domain.Coordinates{
			Latitude:  f["latitude"].GetNumberValue(),
			Longitude: f["longitude"].GetNumberValue(),
			Accuracy:  f["accuracy"].GetNumberValue(),
		},
	}
	if fix.DeviceID == "" {
		return nil, fmt.Errorf("decode fix: missing device_id")
	}
	if ts := f["time"].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("decode fix time: %w", err)
		}
		fix.Time = t
	}
	return fix, nil
}
