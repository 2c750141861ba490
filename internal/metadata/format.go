package metadata

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"lfu-go/internal/model"
)

// Records are eight newline-terminated lines, in order:
//
//	timestamp     unix seconds as a decimal float
//	size          bytes
//	shouldIgnore  "" (unknown), "0" or "1"
//	sha256        hex, or ""
//	uploadMode    "lfs", "regular" or ""
//	remoteOid     or ""
//	isUploaded    "0" or "1"
//	isCommitted   "0" or "1"
const recordLines = 8

// encode serializes meta. meta.Timestamp must be set.
func encode(meta *model.FileMetadata) []byte {
	var b bytes.Buffer
	ts := float64(meta.Timestamp.UnixNano()) / float64(time.Second)
	fmt.Fprintln(&b, strconv.FormatFloat(ts, 'f', 6, 64))
	fmt.Fprintln(&b, meta.Size)
	if meta.ShouldIgnore == nil {
		fmt.Fprintln(&b)
	} else {
		fmt.Fprintln(&b, flag(*meta.ShouldIgnore))
	}
	fmt.Fprintln(&b, meta.SHA256)
	fmt.Fprintln(&b, string(meta.UploadMode))
	fmt.Fprintln(&b, meta.RemoteOID)
	fmt.Fprintln(&b, flag(meta.IsUploaded))
	fmt.Fprintln(&b, flag(meta.IsCommitted))
	return b.Bytes()
}

// decode parses a record written by encode.
func decode(r io.Reader) (*model.FileMetadata, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(lines) != recordLines {
		return nil, fmt.Errorf("expected %d lines, got %d", recordLines, len(lines))
	}

	ts, err := strconv.ParseFloat(lines[0], 64)
	if err != nil || math.IsNaN(ts) || math.IsInf(ts, 0) {
		return nil, fmt.Errorf("invalid timestamp %q", lines[0])
	}
	sec, frac := math.Modf(ts)
	stamp := time.Unix(int64(sec), int64(math.Round(frac*1e6))*int64(time.Microsecond))

	size, err := strconv.ParseInt(lines[1], 10, 64)
	if err != nil || size < 0 {
		return nil, fmt.Errorf("invalid size %q", lines[1])
	}

	meta := &model.FileMetadata{
		Size:      size,
		SHA256:    lines[3],
		RemoteOID: lines[5],
		Timestamp: &stamp,
	}
	if lines[2] != "" {
		ignore, err := parseFlag(lines[2])
		if err != nil {
			return nil, fmt.Errorf("shouldIgnore: %w", err)
		}
		meta.ShouldIgnore = model.Bool(ignore)
	}
	if mode := model.UploadMode(lines[4]); mode != "" {
		if !mode.Valid() {
			return nil, fmt.Errorf("invalid upload mode %q", lines[4])
		}
		meta.UploadMode = mode
	}
	if meta.IsUploaded, err = parseFlag(lines[6]); err != nil {
		return nil, fmt.Errorf("isUploaded: %w", err)
	}
	if meta.IsCommitted, err = parseFlag(lines[7]); err != nil {
		return nil, fmt.Errorf("isCommitted: %w", err)
	}
	return meta, nil
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseFlag(s string) (bool, error) {
	switch s {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid flag %q", s)
	}
}
