package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusOK).
		Body([]byte("test")).
		Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "test" {
		t.Errorf("Body = %q, want %q", w.Body.String(), "test")
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Errorf("HX-Trigger should be unset without triggers")
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerRecordsChanged("add").
		TriggerFormReset().
		TriggerSuccessNotification("Record added").
		Write(w)

	var triggers map[string]json.RawMessage
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	for _, name := range []string{EventRecordsChanged, EventFormReset, EventShowNotification} {
		if _, ok := triggers[name]; !ok {
			t.Errorf("HX-Trigger missing %q: %v", name, triggers)
		}
	}
	if got := string(triggers[EventRecordsChanged]); got != `{"action":"add"}` {
		t.Errorf("records:changed detail = %s", got)
	}
	if !strings.Contains(string(triggers[EventShowNotification]), `"type":"success"`) {
		t.Errorf("notification detail = %s", triggers[EventShowNotification])
	}
}

func TestHTMXResponseBuilder_ViewChanged(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerViewChanged("report", "2024-01").
		Retarget("#report-chart", "innerHTML").
		Write(w)

	if !strings.Contains(w.Header().Get("HX-Trigger"), `"view:changed":{"mode":"report","month":"2024-01"}`) {
		t.Errorf("HX-Trigger = %s", w.Header().Get("HX-Trigger"))
	}
	if w.Header().Get("HX-Retarget") != "#report-chart" || w.Header().Get("HX-Reswap") != "innerHTML" {
		t.Errorf("retarget headers = %q %q", w.Header().Get("HX-Retarget"), w.Header().Get("HX-Reswap"))
	}
}

func TestHTMXResponseBuilder_CustomHeader(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Header("X-Custom", "value").
		Status(http.StatusCreated).
		Write(w)

	if w.Header().Get("X-Custom") != "value" {
		t.Errorf("Custom header not set")
	}
	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		builder    *HTMXResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{
			name:       "bad request",
			builder:    BadRequestError("Invalid input"),
			wantStatus: http.StatusBadRequest,
			wantBody:   `<div class="error">Invalid input</div>`,
		},
		{
			name:       "unprocessable entity",
			builder:    UnprocessableEntityError("Invalid amount"),
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `<div class="error">Invalid amount</div>`,
		},
		{
			name:       "bad gateway",
			builder:    BadGatewayError("Could not save changes"),
			wantStatus: http.StatusBadGateway,
			wantBody:   `<div class="error">Could not save changes</div>`,
		},
		{
			name:       "not found",
			builder:    NotFoundError("Record not found"),
			wantStatus: http.StatusNotFound,
			wantBody:   `<div class="error">Record not found</div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("Body = %q, want %q", w.Body.String(), tt.wantBody)
			}
			if !strings.Contains(w.Header().Get("HX-Trigger"), `"type":"error"`) {
				t.Errorf("error notification missing: %s", w.Header().Get("HX-Trigger"))
			}
		})
	}
}

func TestErrorResponse_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()

	BadRequestError("<script>alert('xss')</script>").Write(w)

	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("Error response did not escape HTML")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("Error response did not properly escape HTML entities")
	}
	if strings.Contains(w.Header().Get("HX-Trigger"), "<script>") {
		t.Error("HX-Trigger header carries raw markup")
	}
}

func TestMethodNotAllowedError(t *testing.T) {
	w := httptest.NewRecorder()

	MethodNotAllowedError("GET, POST").Write(w)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
	if w.Header().Get("Allow") != "GET, POST" {
		t.Errorf("Allow header = %q, want %q", w.Header().Get("Allow"), "GET, POST")
	}
}

func TestNotificationTypes(t *testing.T) {
	tests := []struct {
		notifType NotificationType
		want      string
	}{
		{NotificationSuccess, "success"},
		{NotificationError, "error"},
		{NotificationWarning, "warning"},
		{NotificationInfo, "info"},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		NewHTMXResponse().
			TriggerNotification(tt.notifType, "test", 1000).
			Write(w)

		trigger := w.Header().Get("HX-Trigger")
		if !strings.Contains(trigger, `"type":"`+tt.want+`"`) {
			t.Errorf("Notification type %q not found in trigger: %s", tt.want, trigger)
		}
	}
}
