package chat

import (
	"context"
	"errors"

	"github.com/floatchat/floatchat-backend/internal/chat/intent"
	"github.com/floatchat/floatchat-backend/internal/platform/logger"
	"github.com/floatchat/floatchat-backend/internal/repos"
)

const mapPointLimit = 100

// TableData is the structured payload rendered as a table by the client.
type TableData struct {
	Columns   []string                 `json:"columns"`
	Rows      []map[string]interface{} `json:"rows"`
	TotalRows int                      `json:"total_rows"`
}

// MapData carries up to mapPointLimit positioned points for the map view.
type MapData struct {
	Points    []map[string]interface{} `json:"points"`
	Parameter string                   `json:"parameter"`
	Region    string                   `json:"region,omitempty"`
}

// QueryResponse is the POST / contract.
type QueryResponse struct {
	Status    string     `json:"status"`
	Message   string     `json:"message"`
	QueryType string     `json:"query_type"`
	HasData   bool       `json:"has_data"`
	ShowMap   bool       `json:"show_map"`
	TableData *TableData `json:"table_data,omitempty"`
	MapData   *MapData   `json:"map_data,omitempty"`
}

// Service is the full read path: classify, retrieve, narrate.
type Service struct {
	classifier *intent.Classifier
	executor   *Executor
	answers    *AnswerSynthesizer
	log        *logger.Logger
}

func NewService(classifier *intent.Classifier, executor *Executor, answers *AnswerSynthesizer, baseLog *logger.Logger) *Service {
	return &Service{
		classifier: classifier,
		executor:   executor,
		answers:    answers,
		log:        baseLog.With("service", "ChatService"),
	}
}

// Answer processes one natural-language query end to end.
func (s *Service) Answer(ctx context.Context, query string) (*QueryResponse, error) {
	cls := s.classifier.Classify(query)
	s.log.Info("query classified",
		"query", cls.Query,
		"intent", string(cls.Intent),
		"store", string(cls.Store),
	)

	if cls.Intent == intent.Informational {
		return &QueryResponse{
			Status:    "success",
			Message:   s.answers.Informational(ctx, cls.Query),
			QueryType: string(cls.Intent),
		}, nil
	}

	result, err := s.executor.Execute(ctx, cls)
	if err != nil {
		var validation *repos.ValidationError
		if errors.As(err, &validation) {
			return nil, err
		}
		s.log.Error("retrieval failed", "intent", string(cls.Intent), "error", err)
		return nil, err
	}

	resp := &QueryResponse{
		Status:    "success",
		Message:   s.answers.Summarize(ctx, cls, result),
		QueryType: string(cls.Intent),
		HasData:   len(result.Rows) > 0,
	}
	if len(result.Rows) > 0 {
		resp.TableData = &TableData{
			Columns:   result.Columns,
			Rows:      result.Rows,
			TotalRows: len(result.Rows),
		}
	}
	if mapData := buildMapData(cls, result); mapData != nil {
		resp.ShowMap = true
		resp.MapData = mapData
	}
	return resp, nil
}

// buildMapData extracts positioned points when the result carries
// coordinates.
func buildMapData(cls intent.Classification, result *Result) *MapData {
	if !hasColumn(result.Columns, "latitude") || !hasColumn(result.Columns, "longitude") {
		return nil
	}
	points := make([]map[string]interface{}, 0, mapPointLimit)
	for _, row := range result.Rows {
		lat, okLat := asFloat(row["latitude"])
		lng, okLng := asFloat(row["longitude"])
		if !okLat || !okLng {
			continue
		}
		point := map[string]interface{}{
			"lat": lat,
			"lng": lng,
		}
		for _, extra := range []string{"temperature", "salinity", "float_id", "datetime"} {
			if v, ok := row[extra]; ok {
				point[extra] = v
			}
		}
		points = append(points, point)
		if len(points) >= mapPointLimit {
			break
		}
	}
	if len(points) == 0 {
		return nil
	}

	parameter := "temperature"
	if len(cls.Entities.Parameters) > 0 {
		parameter = cls.Entities.Parameters[0]
	}
	region := ""
	if len(cls.Entities.Regions) > 0 {
		region = cls.Entities.Regions[0]
	}
	return &MapData{Points: points, Parameter: parameter, Region: region}
}
