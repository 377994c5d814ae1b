package bugzilla

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"bzboard/internal/model"
)

type namedItem struct {
	Name     string `json:"name"`
	IsActive *bool  `json:"is_active,omitempty"`
}

func (n namedItem) active() bool { return n.IsActive == nil || *n.IsActive }

type productRecord struct {
	Name             string      `json:"name"`
	Milestones       []namedItem `json:"milestones"`
	Components       []namedItem `json:"components"`
	Versions         []namedItem `json:"versions"`
	HasUnconfirmed   bool        `json:"has_unconfirmed"`
	DefaultMilestone string      `json:"default_milestone"`
}

type productsResponse struct {
	Products []productRecord `json:"products"`
}

// Products lists the names of products the user may file bugs in, sorted.
func (c *Client) Products(ctx context.Context) ([]string, error) {
	var resp productsResponse
	q := url.Values{"type": {"enterable"}, "include_fields": {"name"}}
	if err := c.get(ctx, "/product", q, &resp); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(resp.Products))
	for _, p := range resp.Products {
		out = append(out, p.Name)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out, nil
}

// Milestones lists a product's milestones in tracker order.
func (c *Client) Milestones(ctx context.Context, product string) ([]string, error) {
	var resp productsResponse
	q := url.Values{"names": {product}, "include_fields": {"milestones"}}
	if err := c.get(ctx, "/product", q, &resp); err != nil {
		return nil, err
	}
	if len(resp.Products) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(resp.Products[0].Milestones))
	for _, m := range resp.Products[0].Milestones {
		out = append(out, m.Name)
	}
	return out, nil
}

// ProductInfo loads active components and versions, the unconfirmed flag and
// the default milestone in one call.
func (c *Client) ProductInfo(ctx context.Context, product string) (model.ProductInfo, error) {
	var resp productsResponse
	q := url.Values{
		"type":           {"enterable"},
		"include_fields": {"name,components,versions,has_unconfirmed,default_milestone"},
	}
	if err := c.get(ctx, "/product/"+url.PathEscape(product), q, &resp); err != nil {
		return model.ProductInfo{}, err
	}
	info := model.ProductInfo{Name: product}
	if len(resp.Products) == 0 {
		return info, nil
	}
	p := resp.Products[0]
	info.HasUnconfirmed = p.HasUnconfirmed
	info.DefaultMilestone = p.DefaultMilestone
	info.Components = activeNames(p.Components)
	info.Versions = activeNames(p.Versions)
	return info, nil
}

func activeNames(items []namedItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it.active() {
			out = append(out, it.Name)
		}
	}
	sort.Strings(out)
	return out
}

// StatusValues returns the workflow statuses in tracker order.
func (c *Client) StatusValues(ctx context.Context) ([]string, error) {
	var resp struct {
		Values []string `json:"values"`
	}
	if err := c.get(ctx, "/field/bug/status/values", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// FieldValues returns the legal values of a select field (resolution,
// priority, bug_severity). The empty value is skipped.
func (c *Client) FieldValues(ctx context.Context, field string) ([]string, error) {
	var resp struct {
		Fields []struct {
			Values []struct {
				Name string `json:"name"`
			} `json:"values"`
		} `json:"fields"`
	}
	if err := c.get(ctx, "/field/bug/"+url.PathEscape(field), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Fields) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(resp.Fields[0].Values))
	for _, v := range resp.Fields[0].Values {
		if v.Name == "" {
			continue
		}
		out = append(out, v.Name)
	}
	return out, nil
}

type Parameters struct {
	DefaultPriority string `json:"defaultpriority"`
	DefaultSeverity string `json:"defaultseverity"`
}

// Parameters returns the tracker's default priority and severity. Some
// installations answer "no such method"; that is not treated as an error.
func (c *Client) Parameters(ctx context.Context) (Parameters, error) {
	var resp struct {
		Parameters Parameters `json:"parameters"`
	}
	err := c.get(ctx, "/parameters", nil, &resp)
	if Classify(err) == KindOther {
		c.logger.WithError(err).Debug("parameters unavailable")
		return Parameters{}, nil
	}
	if err != nil {
		return Parameters{}, err
	}
	return resp.Parameters, nil
}
