package clients_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-hq/caseflow/modules/tasks/domain/access"
	"github.com/caseflow-hq/caseflow/modules/tasks/infrastructure/clients"
	"github.com/caseflow-hq/caseflow/modules/tasks/permissions"
	"github.com/caseflow-hq/caseflow/modules/tasks/services"
)

func TestConfigurationClient_Configure(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/task-configuration", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"title": "Review Appeal",
			"workType": "decision_making_work",
			"majorPriority": 3000,
			"roles": [{
				"name": "case-worker",
				"permissions": ["Read", "Own", "Execute", "SomethingNew"],
				"autoAssignable": true
			}]
		}`))
	}))
	defer srv.Close()

	c, err := clients.NewConfigurationClient(srv.URL, time.Second, clients.StaticTokenSource("t0ken"))
	require.NoError(t, err)

	cfg, err := c.Configure(context.Background(), "reviewAppeal", "IA", "Asylum", services.CaseData{ID: "case-100"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer t0ken", gotAuth)
	assert.Equal(t, "Review Appeal", cfg.Title)
	require.NotNil(t, cfg.MajorPriority)
	assert.Equal(t, 3000, *cfg.MajorPriority)
	require.Len(t, cfg.Roles, 1)
	assert.True(t, cfg.Roles[0].AutoAssignable)
	// Unknown permission names are dropped, known ones survive.
	assert.True(t, cfg.Roles[0].Permissions.Has(permissions.Own))
	assert.Equal(t,
		permissions.NewSet(permissions.Read, permissions.Own, permissions.Execute),
		cfg.Roles[0].Permissions,
	)
}

func TestCaseDataClient_Case(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/cases/case-100", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "case-100",
			"caseType": "Asylum",
			"jurisdiction": "IA",
			"securityClassification": "PRIVATE",
			"accessCategories": ["protection"]
		}`))
	}))
	defer srv.Close()

	c, err := clients.NewCaseDataClient(srv.URL, time.Second, nil)
	require.NoError(t, err)

	data, err := c.Case(context.Background(), "case-100")
	require.NoError(t, err)
	assert.Equal(t, "IA", data.Jurisdiction)
	assert.Equal(t, "PRIVATE", data.Classification)
	assert.Equal(t, []string{"protection"}, data.AccessCategories)

	t.Run("NotFound", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "no such case", http.StatusNotFound)
		}))
		defer srv.Close()

		c, err := clients.NewCaseDataClient(srv.URL, time.Second, nil)
		require.NoError(t, err)
		_, err = c.Case(context.Background(), "missing")
		var statusErr *clients.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusNotFound, statusErr.Status)
	})
}

func TestRoleAssignmentClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/am/role-assignments/actors/user-a":
			_, _ = w.Write([]byte(`{"roleAssignmentResponse": [{
				"actorId": "user-a",
				"roleName": "case-worker",
				"classification": "PRIVATE",
				"grantType": "STANDARD",
				"attributes": {"jurisdiction": "IA"}
			}]}`))
		case "/am/role-assignments/candidates":
			require.Equal(t, "case-worker", r.URL.Query().Get("roles"))
			require.Equal(t, "IA", r.URL.Query().Get("jurisdiction"))
			_, _ = w.Write([]byte(`{"candidates": ["user-a", "user-b"]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := clients.NewRoleAssignmentClient(srv.URL, time.Second, nil)
	require.NoError(t, err)

	assignments, err := c.AssignmentsFor(context.Background(), "user-a")
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, access.GrantStandard, assignments[0].GrantType)
	assert.Equal(t, access.ClassificationPrivate, assignments[0].Classification)
	v, ok := assignments[0].Attribute(access.AttrJurisdiction)
	require.True(t, ok)
	assert.Equal(t, "IA", v)

	candidates, err := c.CandidatesFor(context.Background(), []string{"case-worker"}, "IA")
	require.NoError(t, err)
	assert.Equal(t, []string{"user-a", "user-b"}, candidates)
}

func TestProcessEngineClient(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := clients.NewProcessEngineClient(srv.URL, time.Second, nil)
	require.NoError(t, err)

	require.NoError(t, c.NotifyCompleted(context.Background(), "task-1", time.Now()))
	require.NoError(t, c.NotifyCancelled(context.Background(), "task-1", time.Now()))
	assert.Equal(t, []string{"/engine/tasks/task-1/complete", "/engine/tasks/task-1/cancel"}, paths)
}

func TestNewClients_InvalidURL(t *testing.T) {
	_, err := clients.NewCaseDataClient("not a url", time.Second, nil)
	require.Error(t, err)
}
