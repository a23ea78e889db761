package api

const webUI = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>CCU Gym</title>
<style>
*{box-sizing:border-box;margin:0;padding:0}
body{font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;background:#f5f5f5;color:#333;line-height:1.6}
body.dark{background:#121212;color:#e5e7eb}

/* Header */
.hdr{background:linear-gradient(135deg,#667eea 0%,#764ba2 100%);color:#fff;padding:14px 20px;display:flex;align-items:center;justify-content:space-between;position:sticky;top:0;z-index:100}
.hdr h1{font-size:18px;font-weight:600}
.hdr-right{display:flex;align-items:center;gap:8px;font-size:13px}
.hdr-dot{width:10px;height:10px;border-radius:50%;display:inline-block}
.dot-green{background:#22c55e}.dot-red{background:#ef4444}

/* Tab bar */
.tabs{display:flex;border-bottom:2px solid #e5e7eb;background:#fff;padding:0 16px;position:sticky;top:48px;z-index:99}
body.dark .tabs{background:#1e1e1e;border-bottom-color:#333}
.tab{padding:12px 20px;cursor:pointer;font-size:14px;font-weight:500;color:#666;border-bottom:2px solid transparent;margin-bottom:-2px;transition:all .2s}
.tab:hover{color:#333}
.tab.active{color:#667eea;border-bottom-color:#667eea}

/* Content */
.content{max-width:900px;margin:0 auto;padding:20px}
.card{background:#fff;border-radius:8px;padding:20px;margin-bottom:16px;box-shadow:0 1px 3px rgba(0,0,0,.1)}
body.dark .card{background:#1e1e1e;box-shadow:none}
.card h2{font-size:16px;margin-bottom:12px;padding-bottom:8px;border-bottom:1px solid #eee}
body.dark .card h2{border-bottom-color:#333}

/* Buttons */
.btn{display:inline-flex;align-items:center;gap:6px;padding:8px 16px;border-radius:6px;border:none;cursor:pointer;font-size:14px;font-weight:500;transition:all .2s;line-height:1.4}
.btn:disabled{opacity:.5;cursor:not-allowed}
.btn-primary{background:#667eea;color:#fff}.btn-primary:hover:not(:disabled){background:#5a67d8}
.btn-light{background:rgba(255,255,255,.2);color:#fff}.btn-light:hover{background:rgba(255,255,255,.3)}
.btn-sm{padding:5px 10px;font-size:12px}
.btn-row{display:flex;gap:8px;flex-wrap:wrap;margin-top:12px}

/* Forms */
input[type=text],input[type=password],input[type=number],textarea{padding:8px 12px;border:1px solid #ddd;border-radius:6px;font-size:14px;width:100%}
input[type=number]{width:80px}
textarea{min-height:80px;font-family:inherit}
body.dark input,body.dark textarea{background:#2a2a2a;color:#e5e7eb;border-color:#444}

/* Tables */
table{width:100%;border-collapse:collapse;font-size:14px}
th,td{text-align:left;padding:8px;border-bottom:1px solid #eee}
body.dark th,body.dark td{border-bottom-color:#333}
.out{color:#ef4444}.in{color:#22c55e}

/* Messages */
.msg{margin-top:10px;font-size:14px}
.err{color:#ef4444}
.muted{color:#888;font-size:13px}
.suggestion{white-space:pre-wrap;margin-top:12px}

/* Overview */
.floor img{max-width:100%;height:auto;display:block;margin:0 auto}
.scale{position:fixed;bottom:16px;right:16px;background:#fff;padding:10px 14px;border-radius:8px;box-shadow:0 2px 8px rgba(0,0,0,.2);display:none;font-size:13px}
body.dark .scale{background:#1e1e1e}
.scale.show{display:block}
</style>
</head>
<body>
<header class="hdr">
  <h1 id="title">CCU Gym</h1>
  <div class="hdr-right">
    <span class="hdr-dot dot-red" id="stream-dot" title="Live updates"></span>
    <span id="pro-expiry"></span>
    <button class="btn btn-light btn-sm" id="upgrade-btn" onclick="selectTab('upgrade')">Upgrade to Pro</button>
    <button class="btn btn-light btn-sm" id="dark-btn" onclick="toggleDark()">Dark Mode</button>
  </div>
</header>
<nav class="tabs" id="tabs"></nav>
<main class="content" id="content"></main>
<div class="scale" id="scale">
  Resolution: <input type="range" id="scale-input" min="10" max="100" step="5" onchange="setScale(this.value)">
  <span id="scale-label"></span>
</div>

<script>
let state = null;

function esc(s) {
  return String(s == null ? '' : s).replace(/[&<>"']/g, c => ({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;',"'":'&#39;'}[c]));
}

async function api(method, path, body) {
  const opts = { method: method, headers: {} };
  if (body !== undefined) {
    opts.headers['Content-Type'] = 'application/json';
    opts.body = JSON.stringify(body);
  }
  const res = await fetch(path, opts);
  let data = null;
  try { data = await res.json(); } catch (e) {}
  return { ok: res.ok, status: res.status, data: data };
}

async function loadState() {
  const res = await api('GET', '/api/state');
  state = res.data;
  renderShell();
}

function renderShell() {
  document.getElementById('title').textContent = state.title;
  document.getElementById('upgrade-btn').style.display = state.show_upgrade ? '' : 'none';
  document.getElementById('dark-btn').textContent = state.dark_mode ? 'Light Mode' : 'Dark Mode';
  document.body.classList.toggle('dark', state.dark_mode);
  document.getElementById('pro-expiry').textContent = state.pro_expires_at
    ? 'Pro until ' + new Date(state.pro_expires_at).toLocaleTimeString() : '';
  document.getElementById('tabs').innerHTML = state.tabs.map(t =>
    '<div class="tab' + (t.active ? ' active' : '') + '" onclick="selectTab(\'' + t.id + '\')">' + esc(t.label) + '</div>'
  ).join('');
}

async function selectTab(tab) {
  const res = await api('PUT', '/api/tab', { tab: tab });
  if (!res.ok) return;
  state = res.data;
  renderShell();
  renderActive();
}

async function toggleDark() {
  await api('POST', '/api/dark-mode');
  loadState();
}

async function renderActive() {
  switch (state.active_tab) {
    case 'overview': return renderOverview();
    case 'list': return renderEquipment();
    case 'ai': return renderSuggestion();
    case 'admin': return renderAdmin();
    case 'upgrade': return renderUpgrade();
  }
}

/* Overview */
async function renderOverview() {
  const o = (await api('GET', '/api/overview')).data;
  document.getElementById('scale-input').min = o.min_percent;
  document.getElementById('scale-input').value = o.percent;
  document.getElementById('scale-label').textContent = o.percent + '% (' + o.width + 'x' + o.height + ')';
  document.getElementById('content').innerHTML = '<div class="card floor">' +
    (o.image_url ? '<img src="' + o.image_url + '" alt="Gym floor">' : '<p>Loading image...</p>') + '</div>';
  checkScroll();
}

async function setScale(p) {
  await api('PUT', '/api/overview/scale', { percent: parseInt(p, 10) });
  renderOverview();
}

function checkScroll() {
  const el = document.documentElement;
  const seen = (window.scrollY + window.innerHeight) / el.scrollHeight;
  const show = state && state.active_tab === 'overview' && seen >= 0.8;
  document.getElementById('scale').classList.toggle('show', show);
}
window.addEventListener('scroll', checkScroll);
window.addEventListener('resize', checkScroll);

/* Equipment */
async function renderEquipment() {
  const e = (await api('GET', '/api/equipment')).data;
  let html = '<div class="card"><h2>' + esc(e.people_label) + '</h2>';
  if (!e.loaded) html += '<p class="muted">Loading equipment...</p>';
  for (const sec of e.sections) {
    html += '<h3>' + esc(sec.title) + '</h3><table><tr><th>Equipment</th><th>Status</th></tr>';
    for (const row of sec.rows) {
      html += '<tr><td>' + esc(row.name) + '</td><td class="' + (row.in_stock ? 'in' : 'out') + '">' + esc(row.status) + '</td></tr>';
    }
    html += '</table><br>';
  }
  document.getElementById('content').innerHTML = html + '</div>';
}

/* AI suggestions */
async function renderSuggestion() {
  const res = await api('GET', '/api/suggestions');
  if (!res.ok) return;
  const s = res.data;
  const box = document.getElementById('prompt');
  const draft = box ? box.value : '';
  document.getElementById('content').innerHTML = '<div class="card"><h2>AI Suggestions</h2>' +
    '<textarea id="prompt" placeholder="' + esc(s.placeholder) + '"></textarea>' +
    '<div class="btn-row"><button class="btn btn-primary" onclick="submitPrompt()"' + (s.loading ? ' disabled' : '') + '>' +
    (s.loading ? 'Loading...' : 'Get Suggestion') + '</button></div>' +
    (s.error ? '<p class="msg err">' + esc(s.error) + '</p>' : '') +
    (s.suggestion ? '<div class="suggestion">' + esc(s.suggestion) + '</div>' : '') + '</div>';
  document.getElementById('prompt').value = draft;
}

async function submitPrompt() {
  const prompt = document.getElementById('prompt').value;
  await api('POST', '/api/suggestions', { prompt: prompt });
  renderSuggestion();
}

/* Admin */
async function renderAdmin() {
  const a = (await api('GET', '/api/admin')).data;
  let html = '<div class="card"><h2>Admin Panel</h2>';
  if (a.state !== 'ready') {
    html += a.state === 'loading' ? '<p class="muted">Checking admin session...</p>' :
      '<input type="password" id="password" placeholder="Admin password">' +
      '<div class="btn-row"><button class="btn btn-primary" onclick="login()">Login</button></div>';
  } else {
    html += '<table><tr><th>Name</th><th>Total</th><th>Available</th><th></th></tr>';
    for (const it of a.items) {
      const n = esc(it.name);
      html += '<tr><td>' + n + '</td>' +
        '<td><input type="number" min="0" value="' + it.total + '" onchange="edit(\'' + n + '\', this)" data-f="total"></td>' +
        '<td><input type="number" min="0" max="' + it.total + '" value="' + it.available + '" onchange="edit(\'' + n + '\', this)" data-f="available"></td>' +
        '<td><button class="btn btn-primary btn-sm" onclick="updateRow(\'' + n + '\')"' + (a.busy ? ' disabled' : '') + '>Update</button></td></tr>';
    }
    html += '</table><div class="btn-row"><button class="btn btn-primary" onclick="applyAll()"' + (a.busy ? ' disabled' : '') + '>Apply All Updates</button></div>';
  }
  if (a.message) html += '<p class="msg">' + esc(a.message) + '</p>';
  document.getElementById('content').innerHTML = html + '</div>';
}

async function login() {
  await api('POST', '/api/admin/login', { password: document.getElementById('password').value });
  renderAdmin();
}

async function edit(name, input) {
  const row = input.closest('tr');
  const total = parseInt(row.querySelector('[data-f=total]').value, 10) || 0;
  const available = parseInt(row.querySelector('[data-f=available]').value, 10) || 0;
  await api('PATCH', '/api/admin/equipment/' + encodeURIComponent(name), { total: total, available: available });
  renderAdmin();
}

async function updateRow(name) {
  await api('POST', '/api/admin/equipment/' + encodeURIComponent(name) + '/update');
  renderAdmin();
}

async function applyAll() {
  await api('POST', '/api/admin/apply-all');
  renderAdmin();
}

/* Upgrade */
function renderUpgrade(snap) {
  const s = snap || {};
  document.getElementById('content').innerHTML = '<div class="card"><h2>Upgrade to Pro</h2>' +
    '<input type="text" id="code" maxlength="19" placeholder="XXXX-XXXX-XXXX-XXXX">' +
    '<div class="btn-row"><button class="btn btn-primary" onclick="redeem()"' + (s.loading ? ' disabled' : '') + '>Apply Code</button></div>' +
    (s.message ? '<p class="msg">' + esc(s.message) + '</p>' : '') + '</div>';
}

async function redeem() {
  const res = await api('POST', '/api/upgrade', { code: document.getElementById('code').value });
  renderUpgrade(res.data);
  if (res.ok) setTimeout(() => loadState().then(renderActive), 500);
}

/* Change stream */
const viewTabs = { equipment: 'list', overview: 'overview', admin: 'admin', suggestion: 'ai' };

function connect() {
  const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
  const dot = document.getElementById('stream-dot');
  ws.onopen = () => { dot.className = 'hdr-dot dot-green'; };
  ws.onclose = () => { dot.className = 'hdr-dot dot-red'; setTimeout(connect, 3000); };
  ws.onmessage = (ev) => {
    const msg = JSON.parse(ev.data);
    if (msg.type !== 'change' || !state) return;
    if (msg.view === 'shell') {
      const prev = state.active_tab;
      return loadState().then(() => {
        if (prev !== 'upgrade' && state.active_tab !== prev) renderActive();
      });
    }
    if (viewTabs[msg.view] === state.active_tab) renderActive();
  };
}

loadState().then(renderActive);
connect();
</script>
</body>
</html>`
