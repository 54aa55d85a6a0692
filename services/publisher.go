package services

import "sync"

// Publisher 带当前值的热发布器。
// 新订阅者立即收到当前值，之后收到每次 Publish 的新值。
// 订阅者通道只保留最新一条（慢订阅者丢弃中间值，不丢最新值）。
type Publisher[T any] struct {
	mu      sync.Mutex
	current T
	subs    map[int]chan T
	nextID  int

	// onEmpty 最后一个订阅者取消时回调（用于按引用计数回收发布器）
	onEmpty func()
}

// NewPublisher 创建发布器并设置当前值
func NewPublisher[T any](initial T) *Publisher[T] {
	return &Publisher[T]{
		current: initial,
		subs:    make(map[int]chan T),
	}
}

// SetOnEmpty 设置最后一个订阅者取消时的回调
func (p *Publisher[T]) SetOnEmpty(fn func()) {
	p.mu.Lock()
	p.onEmpty = fn
	p.mu.Unlock()
}

// Subscribe 订阅发布器，当前值立即进入通道
func (p *Publisher[T]) Subscribe() *ValueSubscription[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++

	ch := make(chan T, 1)
	ch <- p.current
	p.subs[id] = ch

	return &ValueSubscription[T]{pub: p, id: id, ch: ch}
}

// Publish 更新当前值并通知所有订阅者
func (p *Publisher[T]) Publish(value T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = value
	for _, ch := range p.subs {
		sendLatest(ch, value)
	}
}

// Value 返回当前值
func (p *Publisher[T]) Value() T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// SubscriberCount 返回当前订阅者数量
func (p *Publisher[T]) SubscriberCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// sendLatest 非阻塞发送：通道满时丢弃旧值，保证最新值可达
func sendLatest[T any](ch chan T, value T) {
	for {
		select {
		case ch <- value:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// ValueSubscription 一次订阅，丢弃即停止接收
type ValueSubscription[T any] struct {
	pub  *Publisher[T]
	id   int
	ch   chan T
	once sync.Once
}

// Updates 返回接收通道
func (s *ValueSubscription[T]) Updates() <-chan T {
	return s.ch
}

// Cancel 取消订阅，通道关闭
func (s *ValueSubscription[T]) Cancel() {
	s.once.Do(func() {
		s.pub.mu.Lock()
		delete(s.pub.subs, s.id)
		close(s.ch)
		empty := len(s.pub.subs) == 0
		onEmpty := s.pub.onEmpty
		s.pub.mu.Unlock()

		if empty && onEmpty != nil {
			onEmpty()
		}
	})
}
