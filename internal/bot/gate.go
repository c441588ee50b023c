package bot

import (
	"sync"
	"time"
)

// Gate - дедупликация обнаружений и cooldown алертов
//
// Два независимых решения:
//   - AdmitDiscovery: пропустить ли токен в обработку вообще
//     (не более одного раза за время жизни процесса)
//   - AdmitAlert: можно ли снова алертить по токену
//     (не чаще одного раза за cooldown)
//
// Память процессная: после рестарта токен может пройти гейт
// повторно, это осознанный компромисс.
type Gate struct {
	mu         sync.Mutex
	seen       map[string]struct{} // навсегда обнаруженные mint
	lastAlerts map[string]time.Time
	cooldown   time.Duration

	now func() time.Time // подменяется в тестах
}

// NewGate создаёт гейт с указанным cooldown алертов
func NewGate(cooldown time.Duration) *Gate {
	return &Gate{
		seen:       make(map[string]struct{}),
		lastAlerts: make(map[string]time.Time),
		cooldown:   cooldown,
		now:        time.Now,
	}
}

// AdmitDiscovery возвращает true ровно один раз для каждого mint.
// Повторные обнаружения того же токена (feed + scan) отбрасываются.
func (g *Gate) AdmitDiscovery(mint string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[mint]; ok {
		return false
	}
	g.seen[mint] = struct{}{}
	return true
}

// AdmitAlert разрешает алерт если с последнего прошло >= cooldown.
// Отсутствие записи трактуется как бесконечно давний алерт.
// При разрешении момент записывается сразу: алерт считается
// потраченным с момента решения, даже если отправка не удастся.
func (g *Gate) AdmitAlert(mint string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if last, ok := g.lastAlerts[mint]; ok && now.Sub(last) < g.cooldown {
		return false
	}
	g.lastAlerts[mint] = now
	return true
}

// SeenCount возвращает количество обнаруженных токенов (для heartbeat)
func (g *Gate) SeenCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
