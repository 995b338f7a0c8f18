package model

// All lists every model in migration order
func All() []interface{} {
	return []interface{}{
		&User{},
		&UserDevice{},
		&Conversation{},
		&ConversationParticipant{},
		&Message{},
		&CallHistory{},
		&Order{},
		&Delivery{},
		&DeliveryTracking{},
	}
}
