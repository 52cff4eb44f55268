package schedulesync

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Верхняя граница числа одновременно подавленных ключей
// Записей на цикл немного, лимит нужен только как предохранитель от утечки
const suppressionCapacity = 1024

// suppressionSet - ограниченное по времени множество ключей локальных элементов,
// записанных самим движком. Уведомление по подавленному ключу - это эхо
// собственной записи, а не правка пользователя
type suppressionSet struct {
	entries *expirable.LRU[string, time.Time]
	window  time.Duration
	now     func() time.Time
}

func newSuppressionSet(window time.Duration) *suppressionSet {
	return &suppressionSet{
		entries: expirable.NewLRU[string, time.Time](suppressionCapacity, nil, window),
		window:  window,
		now:     time.Now,
	}
}

// Mark подавляет ключ на окно, отсчет начинается заново при повторной записи
func (s *suppressionSet) Mark(key string) {
	s.entries.Add(key, s.now().Add(s.window))
}

// IsSuppressed проверяет и попутно вычищает просроченные записи
func (s *suppressionSet) IsSuppressed(key string) bool {
	expiry, ok := s.entries.Get(key)
	if !ok {
		return false
	}
	if s.now().After(expiry) {
		s.entries.Remove(key)
		return false
	}
	return true
}
