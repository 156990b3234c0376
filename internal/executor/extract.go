package executor

import (
	"github.com/vk/pipecanvas/internal/model"
)

// extractOutput pulls the value an upstream node exposes for the requested
// data type. Upstream output shape is type-specific, not uniform: a
// structure-input node assembles its payload from its own config, design and
// prediction nodes publish paths inside result_metadata, and generic nodes
// expose their whole result under "any". This table is the one place that
// convention lives.
func extractOutput(upstream *model.PipelineNode, dataType string) any {
	rm := upstream.ResultMetadata

	switch upstream.Type {
	case "input_node":
		switch dataType {
		case "pdb_file", "any", "":
			if v := upstream.ConfigValue("file_path"); v != nil && v != "" {
				return v
			}
			return upstream.ConfigValue("filename")
		}
		return nil

	case "rfdiffusion", "esmfold":
		switch dataType {
		case "pdb_file", "output_file", "":
			return metadataValue(rm, "output_file")
		case "any":
			return anyMetadata(rm)
		}
		return nil

	case "proteinmpnn":
		switch dataType {
		case "sequence", "":
			return metadataValue(rm, "sequence")
		case "any":
			return anyMetadata(rm)
		}
		return nil

	case "log_node":
		switch dataType {
		case "message", "":
			return metadataValue(rm, "message")
		case "any":
			return anyMetadata(rm)
		}
		return nil

	case "file_check_node":
		switch dataType {
		case "pdb_file", "":
			if v := metadataValue(rm, "file_path"); v != nil {
				return v
			}
			return metadataValue(rm, "filename")
		case "any":
			return anyMetadata(rm)
		}
		return nil

	default:
		// Generic API and code nodes expose their entire result.
		return anyMetadata(rm)
	}
}

// metadataValue reads a named field off the upstream result. api_call
// envelopes nest the service payload under "data", so a key absent at the
// top level is also looked up there.
func metadataValue(rm map[string]any, key string) any {
	if rm == nil {
		return nil
	}
	if v, ok := rm[key]; ok {
		return v
	}
	if data, ok := rm["data"].(map[string]any); ok {
		return data[key]
	}
	return nil
}

// anyMetadata returns the whole result map, or nil when the upstream node
// has not produced one; nil is what required-input validation keys on.
func anyMetadata(rm map[string]any) any {
	if len(rm) == 0 {
		return nil
	}
	return rm
}
