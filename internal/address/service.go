// Package address はログイン中ユーザーの配送先住所の管理を提供する。
package address

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/envelope"
	"github.com/hitoshi/storefront/internal/model"
)

const basePath = "/api/users/me/addresses"

// Service は住所のサービス層。
type Service struct {
	client *apiclient.Client
	norm   *envelope.Normalizer
	logger *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(client *apiclient.Client, norm *envelope.Normalizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, norm: norm, logger: logger}
}

// List は住所一覧を取得する。
func (s *Service) List(ctx context.Context) ([]model.Address, error) {
	body, err := s.client.Get(ctx, basePath)
	if err != nil {
		return nil, fmt.Errorf("住所一覧の取得に失敗しました: %w", err)
	}
	return envelope.List[model.Address](s.norm, "addresses", body), nil
}

// Default は既定の住所を返す。既定がなければ先頭を、住所がなければnilを返す。
func (s *Service) Default(ctx context.Context) (*model.Address, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].IsDefault {
			return &list[i], nil
		}
	}
	if len(list) > 0 {
		return &list[0], nil
	}
	return nil, nil
}

// Create は住所を登録する。
func (s *Service) Create(ctx context.Context, in model.AddressInput) (*model.Address, error) {
	in = trimInput(in)
	if err := validate(in); err != nil {
		return nil, err
	}

	body, err := s.client.Post(ctx, basePath, in)
	if err != nil {
		return nil, fmt.Errorf("住所の登録に失敗しました: %w", err)
	}

	s.logger.Info("住所を登録しました", slog.Bool("is_default", in.IsDefault))
	return s.decodeOr(body, 0, in), nil
}

// Update は住所を更新する。
func (s *Service) Update(ctx context.Context, id int64, in model.AddressInput) (*model.Address, error) {
	if id <= 0 {
		return nil, model.NewAddressNotFoundError(id)
	}
	in = trimInput(in)
	if err := validate(in); err != nil {
		return nil, err
	}

	body, err := s.client.Put(ctx, addressPath(id), in)
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, model.NewAddressNotFoundError(id)
		}
		return nil, fmt.Errorf("住所の更新に失敗しました: %w", err)
	}
	return s.decodeOr(body, id, in), nil
}

// Delete は住所を削除する。
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return model.NewAddressNotFoundError(id)
	}
	if _, err := s.client.Delete(ctx, addressPath(id)); err != nil {
		if apiclient.IsNotFound(err) {
			return model.NewAddressNotFoundError(id)
		}
		return fmt.Errorf("住所の削除に失敗しました: %w", err)
	}
	return nil
}

// SetDefault は住所を既定に設定する。
func (s *Service) SetDefault(ctx context.Context, id int64) error {
	if id <= 0 {
		return model.NewAddressNotFoundError(id)
	}
	if _, err := s.client.Put(ctx, addressPath(id)+"/default", nil); err != nil {
		if apiclient.IsNotFound(err) {
			return model.NewAddressNotFoundError(id)
		}
		return fmt.Errorf("既定住所の設定に失敗しました: %w", err)
	}
	return nil
}

// decodeOr はレスポンスの住所を返す。本文がない場合は入力値から組み立てる。
func (s *Service) decodeOr(body []byte, id int64, in model.AddressInput) *model.Address {
	if len(strings.TrimSpace(string(body))) > 0 {
		if a := envelope.One[model.Address](s.norm, "address", body); a != nil {
			return a
		}
	}
	return &model.Address{
		ID:            id,
		RecipientName: in.RecipientName,
		PhoneNumber:   in.PhoneNumber,
		Street:        in.Street,
		Ward:          in.Ward,
		District:      in.District,
		City:          in.City,
		IsDefault:     in.IsDefault,
	}
}

func trimInput(in model.AddressInput) model.AddressInput {
	in.RecipientName = strings.TrimSpace(in.RecipientName)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.Street = strings.TrimSpace(in.Street)
	in.Ward = strings.TrimSpace(in.Ward)
	in.District = strings.TrimSpace(in.District)
	in.City = strings.TrimSpace(in.City)
	return in
}

func validate(in model.AddressInput) error {
	switch {
	case in.RecipientName == "":
		return model.NewInvalidInputError("tên người nhận là bắt buộc")
	case in.PhoneNumber == "":
		return model.NewInvalidInputError("số điện thoại là bắt buộc")
	case in.Street == "" || in.City == "":
		return model.NewInvalidInputError("địa chỉ và tỉnh/thành phố là bắt buộc")
	}
	return nil
}

func addressPath(id int64) string {
	return basePath + "/" + strconv.FormatInt(id, 10)
}
