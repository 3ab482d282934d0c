package produce

import amqp "github.com/rabbitmq/amqp091-go"

type Produce struct {
	ChainService *ChainProduceService
}

var produceInstance *Produce

func InitProduce(channel *amqp.Channel) *Produce {
	if produceInstance != nil {
		return produceInstance
	}

	chainService := InitChainProduceService(channel)
	if chainService == nil {
		panic("Failed to initialize Chain produce service")
	}

	produceInstance = &Produce{
		ChainService: chainService,
	}

	return produceInstance
}

func GetProduce() *Produce {
	if produceInstance == nil {
		panic("Produce not initialized. Call InitProduce() first.")
	}
	return produceInstance
}
