package sink

import (
	"encoding/json"
	"os"

	"dronevis/internal/telemetry"
)

// FileWriter writes frames and ceiling violations to JSONL files.
type FileWriter struct {
	frameFile     *os.File
	violationFile *os.File
	frameEnc      *json.Encoder
	violationEnc  *json.Encoder
}

// NewFileWriter creates a FileWriter. violationPath may be empty to skip the
// violation log.
func NewFileWriter(framePath, violationPath string) (*FileWriter, error) {
	ff, err := os.Create(framePath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{frameFile: ff, frameEnc: json.NewEncoder(ff)}
	if violationPath != "" {
		vf, err := os.Create(violationPath)
		if err != nil {
			ff.Close()
			return nil, err
		}
		fw.violationFile = vf
		fw.violationEnc = json.NewEncoder(vf)
	}
	return fw, nil
}

// WriteFrame logs a single frame as one JSON line.
func (f *FileWriter) WriteFrame(frame telemetry.Frame) error {
	return f.frameEnc.Encode(frame)
}

// WriteFrames logs multiple frames.
func (f *FileWriter) WriteFrames(frames []telemetry.Frame) error {
	for _, fr := range frames {
		if err := f.WriteFrame(fr); err != nil {
			return err
		}
	}
	return nil
}

// WriteViolation logs a violation row, if enabled.
func (f *FileWriter) WriteViolation(row ViolationRow) error {
	if f.violationEnc == nil {
		return nil
	}
	return f.violationEnc.Encode(row)
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	var err error
	if f.frameFile != nil {
		if e := f.frameFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	if f.violationFile != nil {
		if e := f.violationFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
