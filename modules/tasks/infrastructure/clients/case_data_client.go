package clients

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/caseflow-hq/caseflow/modules/tasks/services"
)

// CaseDataClient reads case records from the case-data store.
type CaseDataClient struct {
	base *baseClient
}

func NewCaseDataClient(baseURL string, timeout time.Duration, tokens TokenSource) (*CaseDataClient, error) {
	base, err := newBaseClient(baseURL, timeout, tokens)
	if err != nil {
		return nil, err
	}
	return &CaseDataClient{base: base}, nil
}

func (c *CaseDataClient) Case(ctx context.Context, caseID string) (services.CaseData, error) {
	var data services.CaseData
	err := c.base.doJSON(ctx, http.MethodGet, "/cases/"+url.PathEscape(caseID), nil, nil, &data)
	if err != nil {
		return services.CaseData{}, err
	}
	return data, nil
}
