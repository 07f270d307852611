package main

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/coverdesk/compare-cli/internal/model"
)

// requestManifest is the YAML shape of a comparison request supplied on
// the command line.
type requestManifest struct {
	RequestID    string             `yaml:"request_id"`
	ClientName   string             `yaml:"client_name"`
	Industry     string             `yaml:"industry"`
	Jurisdiction string             `yaml:"jurisdiction"`
	Sections     []string           `yaml:"selected_coverage_sections"`
	Mode         string             `yaml:"mode"`
	Documents    []documentManifest `yaml:"documents"`
}

type documentManifest struct {
	ID          string `yaml:"document_id"`
	Filename    string `yaml:"filename"`
	StoragePath string `yaml:"storage_path"`
	MimeType    string `yaml:"mime_type"`
	SizeBytes   int64  `yaml:"size_bytes"`
	CarrierName string `yaml:"carrier_name"`
	Type        string `yaml:"document_type"`
}

func loadManifest(path string) (model.ComparisonRequest, error) {
	var req model.ComparisonRequest

	data, err := os.ReadFile(path)
	if err != nil {
		return req, eris.Wrapf(err, "read manifest %s", path)
	}

	var m requestManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return req, eris.Wrapf(err, "parse manifest %s", path)
	}

	req = model.ComparisonRequest{
		ID:           m.RequestID,
		ClientName:   m.ClientName,
		Industry:     m.Industry,
		Jurisdiction: m.Jurisdiction,
		Mode:         model.ComparisonMode(m.Mode),
	}
	if req.Mode == "" {
		req.Mode = model.ModeStructured
	}
	for _, s := range m.Sections {
		req.Sections = append(req.Sections, model.CoverageSection(s))
	}
	for _, d := range m.Documents {
		req.Documents = append(req.Documents, documentFromManifest(d))
	}
	return req, nil
}

func documentFromManifest(d documentManifest) model.DocumentReference {
	docType := model.DocumentType(d.Type)
	if docType == "" {
		docType = model.DocumentTypeQuote
	}
	return model.DocumentReference{
		ID:          d.ID,
		Filename:    d.Filename,
		StoragePath: d.StoragePath,
		MimeType:    d.MimeType,
		SizeBytes:   d.SizeBytes,
		CarrierName: d.CarrierName,
		Type:        docType,
	}
}

func parseMode(s string) model.ComparisonMode {
	switch s {
	case "narrative":
		return model.ModeNarrative
	case "comparison_report":
		return model.ModeComparisonReport
	default:
		return model.ModeStructured
	}
}

// logProgress renders pipeline progress through the global logger.
func logProgress(e model.ProgressEvent) {
	switch e.Level {
	case model.ProgressWarn:
		zap.L().Warn(e.Message, zap.String("stage", e.Stage))
	case model.ProgressError:
		zap.L().Error(e.Message, zap.String("stage", e.Stage))
	default:
		zap.L().Info(e.Message, zap.String("stage", e.Stage))
	}
}
