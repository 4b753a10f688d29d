package neotest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
)

type batchJob struct {
	Method string `json:"method"`
	To     string `json:"to"`
	Body   any    `json:"body,omitempty"`
	ID     int    `json:"id"`
}

// handleBatch replays each job through the normal routing, the way the real
// batch endpoint dispatches internally, resolving {i} placeholders against
// the locations of earlier jobs first. The first failing job aborts the whole
// batch with a 500 and an exception body.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeLegacyError(w, http.StatusMethodNotAllowed, "MethodNotAllowedException", "POST required")
		return
	}
	var jobs []batchJob
	if err := json.NewDecoder(r.Body).Decode(&jobs); err != nil {
		s.writeLegacyError(w, http.StatusBadRequest, "BadInputException", "job list required")
		return
	}

	locations := map[int]string{}
	results := make([]any, 0, len(jobs))
	for _, job := range jobs {
		to, err := resolveJobRefs(job.To, locations)
		if err != nil {
			s.writeLegacyError(w, http.StatusInternalServerError, "BatchOperationFailedException", err.Error())
			return
		}
		body, err := resolveBodyRefs(job.Body, locations)
		if err != nil {
			s.writeLegacyError(w, http.StatusInternalServerError, "BatchOperationFailedException", err.Error())
			return
		}

		status, location, respBody := s.performJob(job.Method, to, body)
		if status >= http.StatusBadRequest {
			s.writeLegacyError(w, http.StatusInternalServerError, "BatchOperationFailedException",
				fmt.Sprintf("Error executing batch operation %d: %s", job.ID, jobErrorMessage(respBody)))
			return
		}
		if location != "" {
			locations[job.ID] = location
		}
		entry := map[string]any{
			"id":     job.ID,
			"from":   job.To,
			"status": status,
			"body":   respBody,
		}
		if location != "" {
			entry["location"] = location
		}
		results = append(results, entry)
	}
	s.writeJSON(w, http.StatusOK, results)
}

// resolveJobRefs rewrites a {i} placeholder to the URI of job i's created
// entity, keeping any trailing path segments.
func resolveJobRefs(raw string, locations map[int]string) (string, error) {
	if !strings.HasPrefix(raw, "{") {
		return raw, nil
	}
	ref, remainder, ok := strings.Cut(raw[1:], "}")
	if !ok {
		return "", fmt.Errorf("malformed job reference %q", raw)
	}
	var jobID int
	if _, err := fmt.Sscanf(ref, "%d", &jobID); err != nil {
		return "", fmt.Errorf("malformed job reference %q", raw)
	}
	location, found := locations[jobID]
	if !found {
		return "", fmt.Errorf("job reference {%d} does not name an earlier created entity", jobID)
	}
	return location + remainder, nil
}

func resolveBodyRefs(body any, locations map[int]string) (any, error) {
	switch v := body.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			resolved, err := resolveBodyRefs(value, locations)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, value := range v {
			resolved, err := resolveBodyRefs(value, locations)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case string:
		if strings.HasPrefix(v, "{") {
			return resolveJobRefs(v, locations)
		}
		return v, nil
	default:
		return body, nil
	}
}

func (s *Server) performJob(method, to string, body any) (status int, location string, respBody any) {
	target := to
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = s.pay.base + strings.TrimPrefix(target, "/")
	}
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return http.StatusBadRequest, "", exception("BadInputException", err.Error())
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.route(rec, req)

	var decoded any
	if rec.Body.Len() > 0 {
		json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec.Code, rec.Header().Get("Location"), decoded
}

func jobErrorMessage(body any) string {
	if m, ok := body.(map[string]any); ok {
		if msg, ok := m["message"].(string); ok {
			return msg
		}
	}
	return "job failed"
}
