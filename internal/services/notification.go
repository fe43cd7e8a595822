package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/farisgozi/attendify/internal/config"
	"github.com/farisgozi/attendify/internal/errs"
	"github.com/farisgozi/attendify/internal/models"
	"github.com/farisgozi/attendify/internal/queue"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// TokenStore is the push-token lookup surface.
type TokenStore interface {
	GetByUserID(ctx context.Context, userID string) ([]*models.PushToken, error)
	GetByUserIDs(ctx context.Context, userIDs []string) ([]*models.PushToken, error)
}

// ExpoMessage is the Expo push send payload for one recipient.
type ExpoMessage struct {
	To        string            `json:"to"`
	Sound     string            `json:"sound"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Priority  string            `json:"priority"`
	ChannelID string            `json:"channelId"`
	Data      map[string]string `json:"data,omitempty"`
}

type expoResponse struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type notifyJob struct {
	UserIDs []string          `json:"user_ids"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Data    map[string]string `json:"data,omitempty"`
}

// NotificationService queues and delivers push notifications. Expo
// tokens go through the Expo HTTPS endpoint; APNs device tokens go
// directly through APNs.
type NotificationService struct {
	tokens     TokenStore
	q          queue.Queue
	httpClient *http.Client
	endpoint   string
	authToken  string
	apnsClient *apns2.Client
	apnsTopic  string
}

// NewNotificationService creates a notification service. The APNs path
// stays disabled when no key file is configured.
func NewNotificationService(tokens TokenStore, q queue.Queue, cfg config.PushConfig) (*NotificationService, error) {
	endpoint := cfg.ExpoEndpoint
	if endpoint == "" {
		endpoint = "https://exp.host/--/api/v2/push/send"
	}

	s := &NotificationService{
		tokens:     tokens,
		q:          q,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   endpoint,
		authToken:  cfg.ExpoAccessToken,
		apnsTopic:  cfg.APNsTopic,
	}

	if cfg.APNsKeyFile != "" {
		authKey, err := token.AuthKeyFromFile(cfg.APNsKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load APNs key: %w", err)
		}
		t := &token.Token{AuthKey: authKey, KeyID: cfg.APNsKeyID, TeamID: cfg.APNsTeamID}
		s.apnsClient = apns2.NewTokenClient(t)
		if cfg.APNsProduction {
			s.apnsClient = s.apnsClient.Production()
		} else {
			s.apnsClient = s.apnsClient.Development()
		}
	}

	return s, nil
}

// Notify queues a notification for one user.
func (s *NotificationService) Notify(ctx context.Context, userID, title, body string, data map[string]string) error {
	return s.NotifyMany(ctx, []string{userID}, title, body, data)
}

// NotifyMany queues a notification for a set of users.
func (s *NotificationService) NotifyMany(ctx context.Context, userIDs []string, title, body string, data map[string]string) error {
	if len(userIDs) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", errs.ErrValidation)
	}
	if title == "" && body == "" {
		return fmt.Errorf("%w: title or body is required", errs.ErrValidation)
	}

	raw, err := json.Marshal(notifyJob{UserIDs: userIDs, Title: title, Body: body, Data: data})
	if err != nil {
		return err
	}
	return s.q.Publish(ctx, queue.Message{Type: "notify", Body: raw})
}

// RunWorker consumes the delivery queue until the context is cancelled.
func (s *NotificationService) RunWorker(ctx context.Context) error {
	msgs, err := s.q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range msgs {
		if msg.Type != "notify" {
			continue
		}
		var job notifyJob
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			log.Error().Err(err).Msg("Malformed notification job")
			continue
		}
		if err := s.deliver(ctx, job); err != nil {
			log.Error().Err(err).Strs("user_ids", job.UserIDs).Msg("Notification delivery failed")
		}
	}
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, job notifyJob) error {
	tokens, err := s.tokens.GetByUserIDs(ctx, job.UserIDs)
	if err != nil {
		return err
	}

	var expo []ExpoMessage
	for _, t := range tokens {
		switch t.Platform {
		case "apns":
			if err := s.sendAPNs(ctx, t.Token, job.Title, job.Body); err != nil {
				log.Error().Err(err).Str("user_id", t.UserID).Msg("APNs delivery failed")
			}
		default:
			expo = append(expo, ExpoMessage{
				To:        t.Token,
				Sound:     "default",
				Title:     job.Title,
				Body:      job.Body,
				Priority:  "high",
				ChannelID: "default",
				Data:      job.Data,
			})
		}
	}

	if len(expo) > 0 {
		return s.sendExpo(ctx, expo)
	}
	return nil
}

func (s *NotificationService) sendExpo(ctx context.Context, msgs []ExpoMessage) error {
	var body any = msgs
	if len(msgs) == 1 {
		body = msgs[0]
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: expo push request failed: %w", errs.ErrTransient, err)
	}
	defer resp.Body.Close()

	var result expoResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("%w: malformed expo push response: %w", errs.ErrTransient, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := "expo push send failed"
		if len(result.Errors) > 0 {
			msg = result.Errors[0].Message
		}
		return fmt.Errorf("%w: %s", errs.ErrTransient, msg)
	}
	return nil
}

func (s *NotificationService) sendAPNs(ctx context.Context, deviceToken, title, body string) error {
	if s.apnsClient == nil {
		return fmt.Errorf("%w: APNs not configured", errs.ErrTransient)
	}

	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       s.apnsTopic,
		Payload:     payload.NewPayload().AlertTitle(title).AlertBody(body).Sound("default"),
	}
	res, err := s.apnsClient.PushWithContext(ctx, notification)
	if err != nil {
		return fmt.Errorf("%w: APNs push failed: %w", errs.ErrTransient, err)
	}
	if !res.Sent() {
		return fmt.Errorf("%w: APNs rejected push: %s", errs.ErrTransient, res.Reason)
	}
	return nil
}
