package dynamodb

import (
	"encoding/json"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/stepstats/cache-analyzer/internal/core/domain"
)

// decodeRecord maps one DynamoDB item onto a StepRecord. Absent and
// NULL attributes both decode to nil pointers; that absence is
// meaningful to the classifier and must survive decoding.
func decodeRecord(item map[string]types.AttributeValue) domain.StepRecord {
	return domain.StepRecord{
		StepID:             stringAttr(item, "step_id"),
		Command:            stringAttr(item, "command"),
		AppPackage:         stringAttr(item, "app_package"),
		ThreadCode:         stringAttr(item, "thread_code"),
		CreatedAt:          stringAttr(item, "created_at"),
		StepClassification: stringAttr(item, "step_classification"),
		TestStepStatus:     stringAttr(item, "test_step_status"),
		CacheReadStatus:    intAttr(item, "cache_read_status"),
		CacheReadLatency:   floatAttr(item, "cache_read_latency"),
		CacheQueryResults:  jsonStringAttr(item, "cache_query_results"),
		OCROutput:          stringPtrAttr(item, "ocr_output"),
		LLMOutput:          stringPtrAttr(item, "llm_output"),
		IsBlocker:          boolAttr(item, "is_blocker"),
		EnsembleUsed:       boolAttr(item, "ensemble_used"),
	}
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v := stringPtrAttr(item, name); v != nil {
		return *v
	}
	return ""
}

func stringPtrAttr(item map[string]types.AttributeValue, name string) *string {
	av, ok := item[name]
	if !ok {
		return nil
	}
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return &v.Value
	case *types.AttributeValueMemberN:
		return &v.Value
	default:
		return nil
	}
}

// jsonStringAttr reads an attribute that carries JSON. A string
// attribute is returned as is; a native list or map attribute is
// re-encoded to JSON so the classifier sees one representation.
func jsonStringAttr(item map[string]types.AttributeValue, name string) *string {
	av, ok := item[name]
	if !ok {
		return nil
	}
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return &v.Value
	case *types.AttributeValueMemberL, *types.AttributeValueMemberM:
		encoded, err := json.Marshal(attrToAny(v))
		if err != nil {
			return nil
		}
		text := string(encoded)
		return &text
	default:
		return nil
	}
}

func intAttr(item map[string]types.AttributeValue, name string) *int {
	av, ok := item[name]
	if !ok {
		return nil
	}
	number, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return nil
	}
	if n, err := strconv.Atoi(number.Value); err == nil {
		return &n
	}
	if f, err := strconv.ParseFloat(number.Value, 64); err == nil {
		n := int(f)
		return &n
	}
	return nil
}

func floatAttr(item map[string]types.AttributeValue, name string) *float64 {
	av, ok := item[name]
	if !ok {
		return nil
	}
	number, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(number.Value, 64)
	if err != nil {
		return nil
	}
	return &f
}

func boolAttr(item map[string]types.AttributeValue, name string) *bool {
	av, ok := item[name]
	if !ok {
		return nil
	}
	flag, ok := av.(*types.AttributeValueMemberBOOL)
	if !ok {
		return nil
	}
	return &flag.Value
}

// attrToAny converts a DynamoDB attribute tree into plain Go values
// for JSON re-encoding. Numbers keep integer form when they have no
// fraction part.
func attrToAny(av types.AttributeValue) any {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(v.Value, 64); err == nil {
			return f
		}
		return v.Value
	case *types.AttributeValueMemberBOOL:
		return v.Value
	case *types.AttributeValueMemberNULL:
		return nil
	case *types.AttributeValueMemberL:
		out := make([]any, 0, len(v.Value))
		for _, entry := range v.Value {
			out = append(out, attrToAny(entry))
		}
		return out
	case *types.AttributeValueMemberM:
		out := make(map[string]any, len(v.Value))
		for key, entry := range v.Value {
			out[key] = attrToAny(entry)
		}
		return out
	default:
		return nil
	}
}
