package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// RecordVersionV1 is the only record version written by this package.
const RecordVersionV1 = 1

// ErrUnsupportedRecordVersion is returned when a stored record carries an unknown version.
var ErrUnsupportedRecordVersion = errors.New("unsupported record version")

// ReportRecordV1 is the stored payload of a SUCCEEDED job.
type ReportRecordV1 struct {
	Version int                `json:"version"`
	Report  ConsolidatedReport `json:"report"`
}

// FailureRecordV1 is the stored payload of a FAILED job.
type FailureRecordV1 struct {
	Version int    `json:"version"`
	Reason  string `json:"reason"`
}

func EncodeReport(report ConsolidatedReport) ([]byte, error) {
	data, err := json.Marshal(ReportRecordV1{Version: RecordVersionV1, Report: report})
	if err != nil {
		return nil, fmt.Errorf("encode report record: %w", err)
	}
	return data, nil
}

func EncodeFailure(reason string) ([]byte, error) {
	data, err := json.Marshal(FailureRecordV1{Version: RecordVersionV1, Reason: reason})
	if err != nil {
		return nil, fmt.Errorf("encode failure record: %w", err)
	}
	return data, nil
}

// DecodeReport decodes a stored report record. Unknown versions, unknown
// fields and missing fields are rejected.
func DecodeReport(data []byte) (ConsolidatedReport, error) {
	var record ReportRecordV1
	if err := decodeRecord(data, &record); err != nil {
		return ConsolidatedReport{}, fmt.Errorf("decode report record: %w", err)
	}
	return record.Report, nil
}

// DecodeFailure decodes a stored failure record and returns its reason.
func DecodeFailure(data []byte) (string, error) {
	var record FailureRecordV1
	if err := decodeRecord(data, &record); err != nil {
		return "", fmt.Errorf("decode failure record: %w", err)
	}
	return record.Reason, nil
}

func decodeRecord(data []byte, out any) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	version, ok := raw["version"].(float64)
	if !ok {
		return fmt.Errorf("%w: version is missing", ErrUnsupportedRecordVersion)
	}
	if int(version) != RecordVersionV1 {
		return fmt.Errorf("%w: %v", ErrUnsupportedRecordVersion, version)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		ErrorUnused: true,
		ErrorUnset:  true,
		DecodeHook:  mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		Result:      out,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(raw)
}
