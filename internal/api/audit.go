package api

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/halcyonlabs/authgate/internal/audit"
)

// auditChanSize is the buffer size for the async audit log channel.
// Writes beyond this are dropped rather than blocking request handlers.
const auditChanSize = 256

// auditLog queues an audit entry for asynchronous persistence and mirrors
// the event to InfluxDB when the metrics sink is configured.
//
// Best-effort: if the channel is full the entry is dropped with a warning.
// Authentication must never stall because the audit table is slow.
func (s *Server) auditLog(r *http.Request, event, username, outcome, detail string) {
	if s.metrics != nil {
		s.metrics.WriteAuthEvent(event, username, outcome)
	}

	if s.auditCh == nil {
		return
	}

	entry := &audit.Entry{
		Event:      event,
		Username:   username,
		RemoteAddr: remoteAddr(r),
		Outcome:    outcome,
		Detail:     detail,
	}

	select {
	case s.auditCh <- entry:
	default:
		s.logger.Warn("audit log channel full, dropping entry",
			"event", event,
			"username", username,
		)
	}
}

// drainAuditLog is the single writer goroutine for audit entries.
// It serialises writes so handlers never contend on the audit table,
// and drains remaining entries when the server context is cancelled.
func (s *Server) drainAuditLog(ctx context.Context) {
	for {
		select {
		case entry := <-s.auditCh:
			if err := s.auditRepo.Create(context.Background(), entry); err != nil {
				s.logger.Error("writing audit entry", "event", entry.Event, "error", err)
			}
		case <-ctx.Done():
			// Drain whatever is still queued before exiting.
			for {
				select {
				case entry := <-s.auditCh:
					if err := s.auditRepo.Create(context.Background(), entry); err != nil {
						s.logger.Error("writing audit entry", "event", entry.Event, "error", err)
					}
				default:
					return
				}
			}
		}
	}
}

// remoteAddr returns the client address without the ephemeral port.
func remoteAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// handleListAuditLogs returns the audit trail, filterable by event,
// username, and outcome.
//
// GET /api/v1/core/audit-logs?event=login&username=alice&outcome=failure&limit=50&offset=0
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeNotFound(w, "audit trail is not enabled")
		return
	}

	filter := audit.Filter{
		Event:    r.URL.Query().Get("event"),
		Username: r.URL.Query().Get("username"),
		Outcome:  r.URL.Query().Get("outcome"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "invalid limit parameter")
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "invalid offset parameter")
			return
		}
		filter.Offset = n
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
