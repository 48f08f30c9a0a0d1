// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// connectMQTT connects to broker and logs on behalf of component.
func connectMQTT(component, broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect error: %w", token.Error())
	}
	log.Printf("%s: connected to MQTT broker at %s", component, broker)
	return client, nil
}

// subscribeJSON decodes every message on topic into a fresh T and hands it
// to fn. Undecodable payloads are logged and dropped.
func subscribeJSON[T any](client mqtt.Client, component, topic string, fn func(T)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Printf("%s: %s unmarshal error: %v", component, msg.Topic(), err)
			return
		}
		fn(v)
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	log.Printf("%s: subscribed to %s", component, topic)
	return nil
}

// publishJSON marshals v and publishes it retained on topic.
func publishJSON(client mqtt.Client, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal error (%s): %w", topic, err)
	}
	if token := client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT publish error (%s): %w", topic, token.Error())
	}
	return nil
}
