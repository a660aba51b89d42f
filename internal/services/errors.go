package services

import "errors"

var (
	ErrItemNotFound           = errors.New("budget item not found")
	ErrDuplicateItem          = errors.New("budget item already exists")
	ErrNoItems                = errors.New("no budget items to analyse")
	ErrAIUnavailable          = errors.New("ai service unavailable")
	ErrNoSurplus              = errors.New("item has no unspent surplus")
	ErrNoDraft                = errors.New("no reallocation draft proposed")
	ErrRecommendationNotFound = errors.New("spj recommendation not found")
	ErrEvidenceNotFound       = errors.New("evidence item not found")
)
