package onebot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jose-valero/group-guard-bot/internal/domain"
)

// Client expone las acciones que usan los handlers sobre cualquier transporte.
type Client struct {
	tr Caller
}

func New(tr Caller) *Client { return &Client{tr: tr} }

// do llama la acción, traduce status != ok a *APIError y decodifica data en out (si out != nil).
func (c *Client) do(ctx context.Context, action string, params, out any) error {
	res, err := c.tr.Call(ctx, action, params)
	if err != nil {
		return err
	}
	if !res.ok() {
		return res.err(action)
	}
	if out == nil || len(res.Data) == 0 || string(res.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(res.Data, out); err != nil {
		return fmt.Errorf("onebot %s: decode data: %w", action, err)
	}
	return nil
}

func (c *Client) GetGroupMemberInfo(ctx context.Context, groupID, userID int64) (domain.MemberInfo, error) {
	var dto memberInfoDTO
	if err := c.do(ctx, "get_group_member_info", memberInfoParams{GroupID: groupID, UserID: userID, NoCache: true}, &dto); err != nil {
		return domain.MemberInfo{}, err
	}
	return domain.MemberInfo{
		GroupID:  groupID,
		UserID:   userID,
		Nickname: dto.Nickname,
		Card:     dto.Card,
		Role:     domain.Role(dto.Role),
	}, nil
}

func (c *Client) GetGroupInfo(ctx context.Context, groupID int64) (domain.GroupInfo, error) {
	var dto groupInfoDTO
	if err := c.do(ctx, "get_group_info", groupInfoParams{GroupID: groupID}, &dto); err != nil {
		return domain.GroupInfo{}, err
	}
	return domain.GroupInfo{GroupID: groupID, Name: dto.GroupName, MemberCount: dto.MemberCount}, nil
}

func (c *Client) SendGroupMsg(ctx context.Context, groupID int64, text string) error {
	return c.do(ctx, "send_group_msg", sendGroupMsgParams{GroupID: groupID, Message: text}, nil)
}

// SetGroupAddRequest aprueba o rechaza una solicitud por su flag. reason sólo aplica al rechazo.
func (c *Client) SetGroupAddRequest(ctx context.Context, flag, subType string, approve bool, reason string) error {
	p := setGroupAddRequestParams{Flag: flag, SubType: subType, Approve: approve}
	if !approve {
		p.Reason = reason
	}
	return c.do(ctx, "set_group_add_request", p, nil)
}
