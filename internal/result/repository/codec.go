package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"judgeresult/internal/result/model"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Encoder and decoder are safe for concurrent EncodeAll/DecodeAll calls.
var (
	textEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	textDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// compressText packs compile output for storage. Nil stays nil.
func compressText(s *string) []byte {
	if s == nil {
		return nil
	}
	return textEncoder.EncodeAll([]byte(*s), make([]byte, 0, len(*s)/2+len(zstdMagic)))
}

// decompressText reverses compressText. Rows written before compression are returned as is.
func decompressText(data []byte, valid bool) (*string, error) {
	if !valid {
		return nil, nil
	}
	if !bytes.HasPrefix(data, zstdMagic) {
		s := string(data)
		return &s, nil
	}
	out, err := textDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress compile output failed: %w", err)
	}
	s := string(out)
	return &s, nil
}

// resultRecord is the cached form of a result.
type resultRecord struct {
	ID                int64            `json:"id"`
	Submission        model.Submission `json:"submission"`
	Status            model.Status     `json:"status"`
	CompileOutput     []byte           `json:"compile_output,omitempty"`
	HasCompileOutput  bool             `json:"has_compile_output,omitempty"`
	PassedTests       *int             `json:"passed_tests,omitempty"`
	TotalMilliseconds *int             `json:"total_milliseconds,omitempty"`
	TotalBytes        *int64           `json:"total_bytes,omitempty"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// encodeRecord serializes a terminal result. Pending results are refused so they never get cached.
func encodeRecord(r *model.SubmissionResult) (string, error) {
	if r == nil || !r.Status.Terminal() {
		return "", fmt.Errorf("only terminal results are cacheable")
	}
	rec := resultRecord{
		ID:                r.ID,
		Submission:        r.Submission,
		Status:            r.Status,
		CompileOutput:     compressText(r.CompileOutput),
		HasCompileOutput:  r.CompileOutput != nil,
		PassedTests:       r.PassedTests,
		TotalMilliseconds: r.TotalMilliseconds,
		TotalBytes:        r.TotalBytes,
		UpdatedAt:         r.UpdatedAt,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeRecord(data string) (*model.SubmissionResult, error) {
	var rec resultRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, err
	}
	output, err := decompressText(rec.CompileOutput, rec.HasCompileOutput)
	if err != nil {
		return nil, err
	}
	return &model.SubmissionResult{
		ID:                rec.ID,
		Submission:        rec.Submission,
		Status:            rec.Status,
		CompileOutput:     output,
		PassedTests:       rec.PassedTests,
		TotalMilliseconds: rec.TotalMilliseconds,
		TotalBytes:        rec.TotalBytes,
		UpdatedAt:         rec.UpdatedAt,
	}, nil
}
