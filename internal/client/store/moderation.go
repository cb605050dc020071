package store

import (
	"context"
	"strings"

	apperrors "komun/internal/errors"
	"komun/pkg/protocol"
)

// Content types accepted by Report.
const (
	ReportPost    = "post"
	ReportMessage = "message"
	ReportComment = "comment"
	ReportUser    = "user"
)

// Reporter files moderation reports.
type Reporter struct {
	src ReportSource
}

func NewReporter(src ReportSource) *Reporter {
	return &Reporter{src: src}
}

func (r *Reporter) Report(ctx context.Context, contentType, contentID, reason string) error {
	req := protocol.CreateReportRequest{
		ContentType: strings.ToLower(strings.TrimSpace(contentType)),
		ContentID:   strings.TrimSpace(contentID),
		Reason:      strings.TrimSpace(reason),
	}
	if err := validateStruct(req); err != nil {
		return err
	}
	if err := r.src.CreateReport(ctx, req); err != nil {
		return apperrors.Normalize(err, "Could not send the report")
	}
	return nil
}
