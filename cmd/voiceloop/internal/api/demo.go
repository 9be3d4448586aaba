package api

// demoPage is a minimal browser page that records microphone audio and
// runs it through the loop, for manual end-to-end checks.
const demoPage = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width,initial-scale=1" />
    <title>Voice Loop Demo</title>
    <style>
      body { font-family: Arial, sans-serif; margin: 2rem; max-width: 860px; }
      button { margin-right: 0.5rem; padding: 0.6rem 1rem; }
      pre { background: #f3f5f7; padding: 1rem; overflow: auto; }
    </style>
  </head>
  <body>
    <h2>Voice Loop Demo</h2>
    <p>Record audio from your device microphone and run it through the pipeline.</p>
    <div>
      <button id="start">Start Recording</button>
      <button id="stop" disabled>Stop + Process</button>
      <button id="newSession">New Session</button>
    </div>
    <p><b>Session:</b> <span id="session">not started</span></p>
    <h3>Transcript + Signals</h3>
    <pre id="output">Waiting for input...</pre>
    <h3>Agent Audio</h3>
    <audio id="player" controls></audio>
    <script>
      let mediaRecorder;
      let chunks = [];
      let sessionId = null;

      async function startSession() {
        const r = await fetch('/api/v1/voice-loop/sessions/start', { method: 'POST' });
        const data = await r.json();
        sessionId = data.session_id;
        document.getElementById('session').innerText = sessionId;
      }

      document.getElementById('newSession').onclick = startSession;
      document.getElementById('start').onclick = async () => {
        if (!sessionId) await startSession();
        const stream = await navigator.mediaDevices.getUserMedia({ audio: true });
        mediaRecorder = new MediaRecorder(stream, { mimeType: 'audio/webm' });
        chunks = [];
        mediaRecorder.ondataavailable = (event) => chunks.push(event.data);
        mediaRecorder.start();
        document.getElementById('start').disabled = true;
        document.getElementById('stop').disabled = false;
      };

      document.getElementById('stop').onclick = async () => {
        mediaRecorder.onstop = async () => {
          const blob = new Blob(chunks, { type: 'audio/webm' });
          const response = await fetch('/api/v1/voice-loop/process?session_id=' + encodeURIComponent(sessionId), {
            method: 'POST',
            headers: { 'Content-Type': 'audio/webm' },
            body: blob
          });
          const data = await response.json();
          document.getElementById('output').innerText = JSON.stringify(data, null, 2);

          if (data.tts_audio_b64 && data.tts_mime_type) {
            document.getElementById('player').src = 'data:' + data.tts_mime_type + ';base64,' + data.tts_audio_b64;
          }
        };

        mediaRecorder.stop();
        document.getElementById('start').disabled = false;
        document.getElementById('stop').disabled = true;
      };
    </script>
  </body>
</html>`
