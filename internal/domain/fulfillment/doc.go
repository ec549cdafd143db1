// Package fulfillment contains the Fulfillment bounded context.
// This context tracks paid upstream shop orders through manufacturing at a
// print-on-demand factory.
//
// Key concepts:
//   - Order / OrderLine: read-only view of an upstream shop order
//   - ImageRef: a print or mock image attached to a factory goods line
//   - CanonicalOrderPayload: the factory submission document built from an order
//   - LifecycleState: order progress reconstructed from tags on the upstream order
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (Shopify, factory API, design plugin) live in the infrastructure layer
package fulfillment
