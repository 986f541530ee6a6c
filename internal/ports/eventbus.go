package ports

import "github.com/FuturICT2/FIN4NotificationServer/internal/domain"

// EventBus is an internal pub/sub for raw contract events. Each contract name
// is a topic; subscribers of one topic see its events in publish order.
type EventBus interface {
	Publish(event domain.ContractEvent)
	SubscribeTopic(contract string) (<-chan domain.ContractEvent, func())
}
