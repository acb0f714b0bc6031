package models

// This file serves as the central export point for all database models
// Import this package to access all model types

// Database schema overview:
// 1. users - Accounts with credit balance and premium entitlement
// 2. refresh_tokens - Hashed long-lived auth tokens
// 3. calls - Lightweight mirrors of calls on the external voice platform
// 4. reports - AI-generated call analyses, one per call
// 5. user_stats - Streak/points gamification state per user
// 6. voice_diagnoses - Voice-health analyses of uploaded audio
