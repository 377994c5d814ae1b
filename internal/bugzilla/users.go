package bugzilla

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"bzboard/internal/model"
)

type usersResponse struct {
	Users []model.UserDetail `json:"users"`
}

func (c *Client) User(ctx context.Context, id int) (model.UserDetail, error) {
	var resp usersResponse
	if err := c.get(ctx, "/user/"+strconv.Itoa(id), nil, &resp); err != nil {
		return model.UserDetail{}, err
	}
	if len(resp.Users) == 0 {
		return model.UserDetail{}, fmt.Errorf("bugzilla: user %d not found", id)
	}
	return resp.Users[0], nil
}

// Users resolves ids to login name and email in one call.
func (c *Client) Users(ctx context.Context, ids []int) ([]model.UserDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := url.Values{"include_fields": {"id,email,name"}}
	for _, id := range ids {
		q.Add("ids", strconv.Itoa(id))
	}
	var resp usersResponse
	if err := c.get(ctx, "/user", q, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// Login exchanges credentials for a token. The token is not installed on the
// client; callers decide whether to persist it.
func (c *Client) Login(ctx context.Context, login, password string) (model.Auth, error) {
	var resp struct {
		ID    int    `json:"id"`
		Token string `json:"token"`
	}
	q := url.Values{"login": {login}, "password": {password}}
	if err := c.get(ctx, "/login", q, &resp); err != nil {
		return model.Auth{}, err
	}
	if resp.Token == "" {
		return model.Auth{}, fmt.Errorf("bugzilla: login returned no token")
	}
	return model.Auth{UserID: resp.ID, Token: resp.Token}, nil
}
