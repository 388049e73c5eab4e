package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"lchat/global"
	"lchat/logger"
	"lchat/service/chat"
	"lchat/tools/decode"
	"lchat/tools/errs"
)

const statusUserNotExist = "USER_NOT_EXIST"

type userQueryPayload struct {
	UserID string `json:"user_id"`
}

func handleProfileInfo(ctx context.Context, s *chat.Server, c *chat.WsConn, f *chat.Frame) {
	p, err := decode.Payload[userQueryPayload](f.Data)
	if err != nil {
		logger.Warnf("bad profile query, conn=%s err=%v", c.ConnID, err)
		replyErr(c, f, chat.StatusUnknownError)
		return
	}
	u, err := s.Users.GetUser(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, &errs.ErrRecordNotFound) {
			replyErr(c, f, statusUserNotExist)
			return
		}
		logger.Errorf("profile query failed, user=%s err=%v", p.UserID, err)
		replyErr(c, f, chat.StatusUnknownError)
		return
	}
	reply(c, f, map[string]any{
		"status":                chat.StatusSuccess,
		"user_id":               u.UserID,
		"first_name":            u.FirstName,
		"last_name":             u.LastName,
		"about":                 u.About,
		"email":                 u.Email,
		"is_email_verified":     u.IsEmailVerified,
		"account_status":        u.AccountStatus,
		"account_type":          u.AccountType,
		"profile_pic_url":       profileURL(u.ProfilePicURL),
		"profile_pic_url_96x96": profileURL(u.ProfilePicURL96),
		"latitude":              u.Latitude,
		"longitude":             u.Longitude,
		"geo":                   u.Geo,
		"location_type":         u.LocationType,
		"created_at_year":       time.UnixMilli(u.CreatedAt).UTC().Year(),
		"updated_at":            u.UpdatedAt,
	})
}

func handleQueryPublicKey(ctx context.Context, s *chat.Server, c *chat.WsConn, f *chat.Frame) {
	p, err := decode.Payload[userQueryPayload](f.Data)
	if err != nil {
		logger.Warnf("bad key query, conn=%s err=%v", c.ConnID, err)
		replyErr(c, f, chat.StatusUnknownError)
		return
	}
	key, err := s.Users.GetPublicKey(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, &errs.ErrRecordNotFound) {
			replyErr(c, f, chat.StatusFailedOnKey)
			return
		}
		logger.Errorf("key query failed, user=%s err=%v", p.UserID, err)
		replyErr(c, f, chat.StatusUnknownError)
		return
	}
	reply(c, f, map[string]any{
		"status":      chat.StatusSuccess,
		"public_key":  key.EncryptedPublicKey,
		"key_version": key.KeyVersion,
	})
}

// profileURL maps a stored relative picture path to its public URL.
func profileURL(rel string) string {
	if rel == "" || strings.HasPrefix(rel, "http") {
		return rel
	}
	return strings.TrimRight(global.Conf.ProfileBaseURL, "/") + "/" + strings.TrimLeft(rel, "/")
}
