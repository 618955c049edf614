package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/chazu/jflow/analysis"
	"github.com/chazu/jflow/classfile"
)

// Procedure paths of the analysis service.
const (
	ServiceName           = "jflow.v1.AnalysisService"
	AnalyzeClassProcedure = "/" + ServiceName + "/AnalyzeClass"
	GetReportProcedure    = "/" + ServiceName + "/GetReport"
	maxClassBytes         = 16 << 20
)

// AnalyzeClassRequest carries the bytes of one class file.
type AnalyzeClassRequest struct {
	Class []byte `cbor:"1,keyasint"`
	// Name labels the class in logs, typically its file path.
	Name string `cbor:"2,keyasint,omitempty"`
}

// AnalyzeClassResponse returns the report of the analysis run.
type AnalyzeClassResponse struct {
	Report *analysis.Report `cbor:"1,keyasint"`
}

// GetReportRequest names an earlier run.
type GetReportRequest struct {
	RunID string `cbor:"1,keyasint"`
}

// GetReportResponse returns a held report.
type GetReportResponse struct {
	Report *analysis.Report `cbor:"1,keyasint"`
}

// AnalysisService implements the analysis procedures.
type AnalysisService struct {
	analyzer *analysis.Analyzer
	reports  *ReportStore
}

// NewAnalysisService creates an AnalysisService.
func NewAnalysisService(analyzer *analysis.Analyzer, reports *ReportStore) *AnalysisService {
	return &AnalysisService{analyzer: analyzer, reports: reports}
}

// AnalyzeClass parses a class file and analyses all of its methods.
func (s *AnalysisService) AnalyzeClass(
	ctx context.Context,
	req *connect.Request[AnalyzeClassRequest],
) (*connect.Response[AnalyzeClassResponse], error) {
	if len(req.Msg.Class) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("class bytes are required"))
	}

	cf, err := classfile.Parse(req.Msg.Class)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	name := req.Msg.Name
	if name == "" {
		name = cf.Name
	}
	log.Debugf("analyzing %s (%d bytes)", name, len(req.Msg.Class))

	report, err := s.analyzer.AnalyzeClass(ctx, cf)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, connect.NewError(connect.CodeCanceled, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	s.reports.Add(report)

	return connect.NewResponse(&AnalyzeClassResponse{Report: report}), nil
}

// GetReport returns a report produced by an earlier AnalyzeClass call.
func (s *AnalysisService) GetReport(
	ctx context.Context,
	req *connect.Request[GetReportRequest],
) (*connect.Response[GetReportResponse], error) {
	runID := strings.TrimSpace(req.Msg.RunID)
	if runID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("run id is required"))
	}
	report, ok := s.reports.Lookup(runID)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("run %q not found", runID))
	}
	return connect.NewResponse(&GetReportResponse{Report: report}), nil
}

// NewAnalysisServiceHandler builds an HTTP handler serving svc. It returns
// the path to mount the handler on.
func NewAnalysisServiceHandler(svc *AnalysisService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{
		connect.WithCodec(newCBORCodec()),
		connect.WithReadMaxBytes(maxClassBytes),
	}, opts...)

	mux := http.NewServeMux()
	mux.Handle(AnalyzeClassProcedure, connect.NewUnaryHandler(AnalyzeClassProcedure, svc.AnalyzeClass, opts...))
	mux.Handle(GetReportProcedure, connect.NewUnaryHandler(GetReportProcedure, svc.GetReport, opts...))
	return "/" + ServiceName + "/", mux
}

// Client calls a remote analysis service.
type Client struct {
	analyzeClass *connect.Client[AnalyzeClassRequest, AnalyzeClassResponse]
	getReport    *connect.Client[GetReportRequest, GetReportResponse]
}

// NewClient creates a Client for the service at baseURL, for example
// http://localhost:8765.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(newCBORCodec())}, opts...)
	return &Client{
		analyzeClass: connect.NewClient[AnalyzeClassRequest, AnalyzeClassResponse](
			httpClient, baseURL+AnalyzeClassProcedure, opts...),
		getReport: connect.NewClient[GetReportRequest, GetReportResponse](
			httpClient, baseURL+GetReportProcedure, opts...),
	}
}

// AnalyzeClass sends class bytes for analysis.
func (c *Client) AnalyzeClass(ctx context.Context, name string, class []byte) (*analysis.Report, error) {
	resp, err := c.analyzeClass.CallUnary(ctx, connect.NewRequest(&AnalyzeClassRequest{Class: class, Name: name}))
	if err != nil {
		return nil, err
	}
	return resp.Msg.Report, nil
}

// GetReport fetches the report of an earlier run.
func (c *Client) GetReport(ctx context.Context, runID string) (*analysis.Report, error) {
	resp, err := c.getReport.CallUnary(ctx, connect.NewRequest(&GetReportRequest{RunID: runID}))
	if err != nil {
		return nil, err
	}
	return resp.Msg.Report, nil
}
