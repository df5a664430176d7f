// Package attendance contains a minimal client for the college attendance
// API, which authenticates each request with the student's roll number and
// password as query parameters.
package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tharunkd/attendbot/telemetry"
)

// Client provides the attendance and skip-projection endpoints.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Subject is one row of the subject-wise summary.
type Subject struct {
	Name         string  `json:"subject_name"`
	AttendedHeld string  `json:"attended_held"`
	Percentage   float64 `json:"percentage"`
}

// TotalInfo is the aggregate attendance block.
type TotalInfo struct {
	Attended              int     `json:"total_attended"`
	Held                  int     `json:"total_held"`
	Percentage            float64 `json:"total_percentage"`
	HoursCanSkip          int     `json:"hours_can_skip"`
	AdditionalHoursNeeded int     `json:"additional_hours_needed"`
}

// TodayEntry is one row of the today section. Either Subject and
// AttendanceToday are set, or Message carries a single free-form line for
// days with no subject-level data.
type TodayEntry struct {
	Subject         string `json:"subject"`
	AttendanceToday string `json:"attendance_today"`
	Message         string `json:"message"`
}

// Report mirrors the /attendance response.
type Report struct {
	RollNumber string       `json:"roll_number"`
	Subjects   []Subject    `json:"subjectwise_summary"`
	Total      TotalInfo    `json:"total_info"`
	Today      []TodayEntry `json:"attendance_summary"`
}

// SkipResult mirrors the /skip response.
type SkipResult struct {
	NewPercentage      float64 `json:"new_attendance_percentage"`
	OriginalPercentage float64 `json:"original_attendance_percentage"`
	Status             string  `json:"status"`
	HoursCanSkipAfter  int     `json:"hours_can_skip_after"`
}

// Fetch looks up the attendance report for one student. Any transport
// failure or non-2xx status is an error; the caller decides how to phrase
// it for the user. The call is never retried.
func (c *Client) Fetch(ctx context.Context, studentID, password string) (*Report, error) {
	var rep Report
	if err := c.get(ctx, "/attendance", map[string]string{
		"student_id": studentID,
		"password":   password,
	}, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// Skip projects the attendance percentage after skipping the given number
// of hours.
func (c *Client) Skip(ctx context.Context, studentID, password string, hours int) (*SkipResult, error) {
	var res SkipResult
	if err := c.get(ctx, "/skip", map[string]string{
		"student_id": studentID,
		"password":   password,
		"hours":      strconv.Itoa(hours),
	}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, dest any) error {
	ctx, span := telemetry.StartSpan(ctx, "attendance", "GET "+path)
	defer span.End()
	telemetry.Inc(telemetry.AttendanceLookups)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		telemetry.Inc(telemetry.AttendanceFailures)
		return fmt.Errorf("build request: %w", err)
	}
	q := req.URL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.http().Do(req)
	if err != nil {
		telemetry.Inc(telemetry.AttendanceFailures)
		telemetry.RecordError(span, err)
		return fmt.Errorf("attendance api: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()

	if telemetry.AttendanceDuration != nil {
		telemetry.AttendanceDuration.Observe(time.Since(start).Seconds())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		telemetry.Inc(telemetry.AttendanceFailures)
		err := fmt.Errorf("attendance api status %d", resp.StatusCode)
		telemetry.RecordError(span, err)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		telemetry.Inc(telemetry.AttendanceFailures)
		telemetry.RecordError(span, err)
		return fmt.Errorf("decode response: %w", err)
	}
	telemetry.SetSpanSuccess(span)
	return nil
}
