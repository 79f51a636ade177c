// Package prompts centralizes the instruction text sent to the LLM.
// Keeping all prompt strings in one package makes them reviewable as a
// set and keeps wording changes out of the agent logic.
package prompts
