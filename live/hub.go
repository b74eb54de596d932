package live

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Event — сообщение для подписчиков комнаты (канал tournament_<id>).
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	Channel string      `json:"channel,omitempty"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Hub держит комнаты подписчиков и рассылает им события. Рассылка
// best-effort: медленный или закрытый клиент просто пропускает сообщение.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.rooms[client.Room]; !ok {
				h.rooms[client.Room] = make(map[*Client]bool)
			}
			h.rooms[client.Room][client] = true
			log.Printf("Client registered to room %s. Total clients in room: %d", client.Room, len(h.rooms[client.Room]))
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.Room]; ok {
				if _, okClient := clients[client]; okClient {
					client.closeSend()
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.rooms, client.Room)
						log.Printf("Room %s closed as it's empty.", client.Room)
					} else {
						log.Printf("Client unregistered from room %s. Total clients in room: %d", client.Room, len(clients))
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish отправляет событие всем клиентам канала. Никогда не возвращает
// ошибку: сбой рассылки логируется и глотается, операция-источник события
// не должна от него зависеть.
func (h *Hub) Publish(channel string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	roomClients, ok := h.rooms[channel]
	if !ok {
		return
	}

	messageBytes, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshalling message for channel %s: %v", channel, err)
		return
	}

	for client := range roomClients {
		client.Mu.Lock()
		if client.IsClosed {
			client.Mu.Unlock()
			continue
		}
		select {
		case client.Send <- messageBytes:
		default:
			log.Printf("Client's send channel full or closed for channel %s. Skipping.", channel)
		}
		client.Mu.Unlock()
	}
}
