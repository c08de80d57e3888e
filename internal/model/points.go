package model

import "math"

// PointsForItem вычисляет баллы за позицию чека. Для подтверждённого товара
// с положительной ставкой баллы равны ставке, умноженной на количество;
// иначе действует ставка по умолчанию — одна десятая суммы позиции.
// Одно и то же правило применяется и при сканировании, и при ретроактивном
// пересчёте.
func PointsForItem(status ProductStatus, pointsValue int64, quantity float64, totalCents int64) int64 {
	if ItemMatched(status, pointsValue) {
		return int64(math.Floor(float64(pointsValue) * quantity))
	}
	// totalCents/1000 == floor(total/10) в основных единицах валюты
	return totalCents / 1000
}

// ItemMatched сообщает, сопоставлена ли позиция подтверждённому товару
// каталога с положительной ставкой баллов.
func ItemMatched(status ProductStatus, pointsValue int64) bool {
	return status == ProductStatusApproved && pointsValue > 0
}
