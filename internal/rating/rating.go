// Package rating вычисляет итоговую оценку академии и агрегирует оценки пользователей.
//
// Оценки переводятся в десятичную запись и суммируются точно, поэтому
// округление до одного знака всегда выполняется половиной от нуля:
// 2.35 -> 2.4, 2.25 -> 2.3, 2.24 -> 2.2.
package rating

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/fitfinder/internal/model"
)

const (
	categories = 5

	// MinScore и MaxScore задают допустимый диапазон оценки по категории.
	MinScore = 0.0
	MaxScore = 5.0
)

var (
	one = decimal.NewFromInt(1)
	two = decimal.NewFromInt(2)
	ten = decimal.NewFromInt(10)
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// RoundToOneDecimal округляет значение до одного знака после запятой.
// Значение берётся в кратчайшей десятичной записи, NaN и бесконечности возвращаются как есть.
func RoundToOneDecimal(v float64) float64 {
	if !finite(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(1).InexactFloat64()
}

// meanOneDecimal делит сумму на n и округляет частное до одного знака
// половиной от нуля. Деление выполняется с остатком, без промежуточного округления.
func meanOneDecimal(sum decimal.Decimal, n int) float64 {
	count := decimal.NewFromInt(int64(n))
	q, r := sum.Mul(ten).QuoRem(count, 0)
	if r.Abs().Mul(two).GreaterThanOrEqual(count) {
		if sum.Sign() < 0 {
			q = q.Sub(one)
		} else {
			q = q.Add(one)
		}
	}
	return q.Shift(-1).InexactFloat64()
}

// accumulator суммирует оценки в десятичной записи.
// Нечисловые значения переводят его в режим обычной арифметики float64.
type accumulator struct {
	sum     decimal.Decimal
	raw     float64
	inexact bool
}

func (a *accumulator) add(v float64) {
	a.raw += v
	if !finite(v) {
		a.inexact = true
		return
	}
	a.sum = a.sum.Add(decimal.NewFromFloat(v))
}

func (a *accumulator) mean(n int) float64 {
	if a.inexact {
		return a.raw / float64(n)
	}
	return meanOneDecimal(a.sum, n)
}

func scores(c model.CategoryRating) [categories]float64 {
	return [categories]float64{c.Space, c.Equipment, c.ValueForMoney, c.Services, c.Water}
}

// ComputeOverall возвращает среднее пяти оценок, округлённое до одного знака.
// Значения не ограничиваются диапазоном: проверка остаётся на вызывающей стороне.
func ComputeOverall(c model.CategoryRating) float64 {
	var acc accumulator
	for _, v := range scores(c) {
		acc.add(v)
	}
	return acc.mean(categories)
}

// InRange сообщает, что все пять оценок лежат в диапазоне [MinScore, MaxScore].
func InRange(c model.CategoryRating) bool {
	for _, v := range scores(c) {
		if math.IsNaN(v) || v < MinScore || v > MaxScore {
			return false
		}
	}
	return true
}

// Aggregate пересчитывает средние по всем оценкам академии.
// Для пустого набора возвращается нулевой рейтинг с Count == 0.
func Aggregate(submissions []model.RatingSubmission) model.AggregateRating {
	if len(submissions) == 0 {
		return model.AggregateRating{}
	}

	var space, equipment, value, services, water, overall accumulator
	for _, s := range submissions {
		c := s.Categories
		space.add(c.Space)
		equipment.add(c.Equipment)
		value.add(c.ValueForMoney)
		services.add(c.Services)
		water.add(c.Water)
		overall.add(ComputeOverall(c))
	}

	n := len(submissions)
	return model.AggregateRating{
		CategoryRating: model.CategoryRating{
			Space:         space.mean(n),
			Equipment:     equipment.mean(n),
			ValueForMoney: value.mean(n),
			Services:      services.mean(n),
			Water:         water.mean(n),
		},
		Overall: overall.mean(n),
		Count:   n,
	}
}
